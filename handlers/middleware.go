package handlers

import (
	"context"
	"net/http"

	"account-service/accounts"
	"account-service/auth"
	"account-service/models"

	"go.uber.org/zap"
)

// Cookie and header names of the session
const (
	AuthCookie = "AuthToken"
	CSRFCookie = "CSRF-TOKEN"
	CSRFHeader = "X-CSRF-Token"
)

const (
	msgCSRFMissing = "CSRF token missing"
	msgCSRFInvalid = "Invalid CSRF token"
)

// Access is the capability a route requires. The zero value is a public route.
type Access struct {
	// Session requires a valid session cookie
	Session bool
	// Roles, when not empty, restricts the route to callers holding one of them
	Roles []models.Role
	// CSRF requires the X-CSRF-Token header to echo the CSRF-TOKEN cookie
	CSRF bool
}

// Authenticator enforces the Access of each route
type Authenticator struct {
	accounts    *accounts.Service
	csrfEnforce bool
}

// NewAuthenticator creates an authenticator resolving sessions through svc
func NewAuthenticator(svc *accounts.Service, csrfEnforce bool) *Authenticator {
	return &Authenticator{accounts: svc, csrfEnforce: csrfEnforce}
}

// Require wraps next with the checks described by access: session cookie,
// token verification, account lookup, role membership and CSRF echo, in that
// order. The caller identity is attached to the context handed to next.
func (a *Authenticator) Require(access Access, next HandlerFunc) HandlerFunc {
	if !access.Session {
		return next
	}

	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(AuthCookie); err == nil {
			token = cookie.Value
		}

		account, err := a.accounts.Authenticate(ctx, token)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		ctx = withIdentity(ctx, Identity{
			AccountID: account.ID,
			Email:     account.Email,
			Role:      account.Role,
		})

		if len(access.Roles) > 0 && !account.Role.In(access.Roles) {
			logRequest(ctx, "info", "Role not allowed", zap.String("role", string(account.Role)))
			writeErrorMessage(w, http.StatusForbidden, accounts.MsgRoleForbidden)
			return
		}

		if access.CSRF && a.csrfEnforce {
			cookie, err := r.Cookie(CSRFCookie)
			header := r.Header.Get(CSRFHeader)
			if err != nil || cookie.Value == "" || header == "" {
				logRequest(ctx, "info", msgCSRFMissing)
				writeErrorMessage(w, http.StatusForbidden, msgCSRFMissing)
				return
			}
			if !auth.CSRFTokensMatch(cookie.Value, header) {
				logRequest(ctx, "info", msgCSRFInvalid)
				writeErrorMessage(w, http.StatusForbidden, msgCSRFInvalid)
				return
			}
		}

		next(ctx, w, r.WithContext(ctx))
	}
}
