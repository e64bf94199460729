package database

import (
	"context"
	"fmt"

	"account-service/config"
	"account-service/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/db"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeDatabase opens the account store selected by cfg.Driver and makes
// sure its schema (table or unique email index) exists.
func InitializeDatabase(ctx context.Context, cfg config.DatabaseConfig) (models.AccountStore, error) {
	var store models.AccountStore

	switch cfg.Driver {
	case config.DriverMongo:
		mongoStore, err := ConnectMongo(ctx, cfg.URI, cfg.Name)
		if err != nil {
			return nil, err
		}
		store = mongoStore
	case config.DriverSQLite:
		dbConn := db.GetDBConnection(db.DatabaseConfig{
			DRIVER: "sqlite3",
			DB:     cfg.Path,
		})
		store = NewSQLStore(dbConn)
	case config.DriverPostgres:
		dbConn, err := sqlx.ConnectContext(ctx, "pgx", cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = NewSQLStore(dbConn)
	case config.DriverMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("Error while preparing account schema", zap.Error(err), zap.String("driver", cfg.Driver))
		store.Close(ctx)
		return nil, err
	}

	logger.Info("Database initialized successfully", zap.String("driver", cfg.Driver))
	return store, nil
}
