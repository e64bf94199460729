package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"account-service/accounts"
	"account-service/auth"
	cachepackage "account-service/cache"
	"account-service/config"
	"account-service/database"
	"account-service/handlers"
	"account-service/models"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/thejerf/abtime"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitLogger configures the shared logger
func InitLogger(cfg config.LogConfig) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  cfg.CallerKey,
		TimeKey:    cfg.TimeKey,
		CallerSkip: cfg.CallerSkip,
	})
}

// NewHandler builds the account service HTTP handler on top of store.
// listCache may be nil.
func NewHandler(cfg *config.Config, store models.AccountStore, listCache accounts.Cache) http.Handler {
	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.SessionTTL, abtime.NewRealTime())

	opts := []accounts.Option{accounts.WithDefaultPassword(cfg.Auth.DefaultPassword)}
	if listCache != nil {
		opts = append(opts, accounts.WithCache(listCache))
	}
	svc := accounts.NewService(store, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, opts...)

	accountHandler := handlers.NewAccountHandler(svc, handlers.CookieConfig{
		Secure: cfg.Server.SecureCookies(),
		MaxAge: svc.SessionTTL(),
	})
	router := handlers.NewRouter(handlers.Routes(accountHandler), handlers.NewAuthenticator(svc, cfg.Auth.CSRFEnforce))

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.Server.CORSOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", handlers.CSRFHeader}),
		gorillahandlers.AllowCredentials(),
	)
	return cors(router)
}

// StartServer serves the account API until SIGINT or SIGTERM
func StartServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting Account Service...", zap.String("environment", cfg.Server.Environment))

	store, err := database.InitializeDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize database", zap.Error(err))
		return err
	}
	defer store.Close(context.Background())

	projectionCache, err := cachepackage.InitializeCache(cfg.Cache)
	if err != nil {
		return err
	}
	var listCache accounts.Cache
	if projectionCache != nil {
		defer projectionCache.Close()
		listCache = projectionCache
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      NewHandler(cfg, store, listCache),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Account Service started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed to start", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down Account Service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// Migrate creates the accounts table or the unique email index and exits
func Migrate(cfg *config.Config) error {
	ctx := context.Background()
	store, err := database.InitializeDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	return store.Close(ctx)
}
