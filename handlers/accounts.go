package handlers

import (
	"context"
	"net/http"
	"time"

	"account-service/accounts"
	"account-service/models"

	"go.uber.org/zap"
)

// CookieConfig controls the session cookies
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// AccountHandler serves the account endpoints
type AccountHandler struct {
	accounts *accounts.Service
	cookies  CookieConfig
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(svc *accounts.Service, cookies CookieConfig) *AccountHandler {
	return &AccountHandler{
		accounts: svc,
		cookies:  cookies,
	}
}

func (h *AccountHandler) setSessionCookies(w http.ResponseWriter, session *accounts.Session) {
	maxAge := int(h.cookies.MaxAge / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:   CSRFCookie,
		Value:  session.CSRFToken,
		Path:   "/",
		Secure: h.cookies.Secure,
		MaxAge: maxAge,
	})
}

func (h *AccountHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AuthCookie, CSRFCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == AuthCookie,
			Secure:   h.cookies.Secure,
			MaxAge:   -1,
		})
	}
}

// readAccountFields decodes a signup, signin or update body
func readAccountFields(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.AccountFields, bool) {
	var body map[string]interface{}
	if !decodeBody(ctx, w, r, &body) {
		return models.AccountFields{}, false
	}
	fields, err := models.ParseAccountFields(body)
	if err != nil {
		logRequest(ctx, "info", "Invalid account fields", zap.Error(err))
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return models.AccountFields{}, false
	}
	return fields, true
}

// Signup handles POST /signup
func (h *AccountHandler) Signup(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	fields, ok := readAccountFields(ctx, w, r)
	if !ok {
		return
	}

	session, err := h.accounts.Signup(ctx, fields)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.setSessionCookies(w, session)
	logRequest(ctx, "info", "User created successfully", zap.String("account_id", session.AccountID))
	writeMessage(w, http.StatusCreated, "User created successfully")
}

// Signin handles POST /signin
func (h *AccountHandler) Signin(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	fields, ok := readAccountFields(ctx, w, r)
	if !ok {
		return
	}

	session, err := h.accounts.Signin(ctx, fields)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.setSessionCookies(w, session)
	logRequest(ctx, "info", "User successfully signed in", zap.String("account_id", session.AccountID))
	writeMessage(w, http.StatusOK, "User successfully signed in")
}

// Update handles PUT /update
func (h *AccountHandler) Update(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(ctx)
	fields, ok := readAccountFields(ctx, w, r)
	if !ok {
		return
	}

	if err := h.accounts.Update(ctx, id.AccountID, fields); err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "User updated successfully")
	writeMessage(w, http.StatusOK, "User updated successfully")
}

// Delete handles DELETE /delete
func (h *AccountHandler) Delete(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(ctx)

	if err := h.accounts.Delete(ctx, id.AccountID); err != nil {
		writeError(ctx, w, err)
		return
	}

	h.clearSessionCookies(w)
	logRequest(ctx, "info", "User successfully deleted")
	writeMessage(w, http.StatusOK, "User successfully deleted")
}

// GetUser handles GET /user
func (h *AccountHandler) GetUser(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(ctx)

	account, err := h.accounts.Get(ctx, id.AccountID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "debug", "User retrieved successfully")
	writeJSON(w, http.StatusOK, account)
}

// UpdateRole handles PUT /role-update
func (h *AccountHandler) UpdateRole(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.RoleUpdateRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	if err := h.accounts.UpdateRole(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Role updated", zap.String("role", string(req.Role)))
	writeMessage(w, http.StatusOK, "User's role updated to "+string(req.Role)+".")
}

// ListUsers handles GET /users
func (h *AccountHandler) ListUsers(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(ctx)

	projections, err := h.accounts.List(ctx, id.Role)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Users retrieved successfully", zap.Int("count", len(projections)))
	writeJSON(w, http.StatusOK, projections)
}

// SearchUser handles GET /search?email= or ?firstName=&lastName=
func (h *AccountHandler) SearchUser(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(ctx)
	q := r.URL.Query()
	query := models.AccountQuery{
		Email:     q.Get("email"),
		FirstName: q.Get("firstName"),
		LastName:  q.Get("lastName"),
	}

	projection, err := h.accounts.Search(ctx, id.Role, query)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "User found")
	writeJSON(w, http.StatusOK, projection)
}

// Health handles GET /health
func Health(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "account-service",
	})
}
