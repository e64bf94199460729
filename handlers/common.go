package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"account-service/accounts"
	"account-service/models"

	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// HandlerFunc is the handler shape used by every route. ctx carries the
// route description and, behind an authenticated route, the caller identity.
type HandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request)

func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f(r.Context(), w, r)
}

type contextKey int

const (
	routeKey contextKey = iota
	identityKey
)

func withRoute(ctx context.Context, route Route) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

func routeFrom(ctx context.Context) (Route, bool) {
	route, ok := ctx.Value(routeKey).(Route)
	return route, ok
}

// Identity is the authenticated caller of a request
type Identity struct {
	AccountID string
	Email     string
	Role      models.Role
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller attached by the Authenticator
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// logRequest logs message prefixed with the route name, method and path of
// the current request, plus the caller when one is authenticated.
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	route, _ := routeFrom(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + route.Name + " - " + route.Method + " - " + route.Path
	allFields := append([]zap.Field{
		zap.String("route", route.Name),
		zap.String("method", route.Method),
		zap.String("path", route.Path),
	}, fields...)

	if id, ok := IdentityFrom(ctx); ok {
		logMsg += " - account:" + id.AccountID
		allFields = append(allFields, zap.String("account_id", id.AccountID))
	}
	if message != "" {
		logMsg += " - " + message
	}

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.MessageResponse{Message: message})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeError reports a service failure. Internal causes are logged and
// replaced by a generic message.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := accounts.StatusCode(err)
	if status == http.StatusInternalServerError {
		logRequest(ctx, "error", "Request failed", zap.Error(err))
	} else {
		logRequest(ctx, "info", accounts.PublicMessage(err), zap.Int("status", status))
	}
	writeErrorMessage(w, status, accounts.PublicMessage(err))
}

// decodeBody reads a JSON request body into v
func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeErrorMessage(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

const maxBodyBytes = 1 << 20
