package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"account-service/accounts"
	"account-service/auth"
	"account-service/database"
	"account-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"github.com/umakantv/go-utils/logger"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}

type testEnv struct {
	router http.Handler
	store  *database.MemoryStore
	clock  *abtime.ManualTime
}

func newTestEnv(t *testing.T, csrfEnforce bool) *testEnv {
	t.Helper()
	clock := abtime.NewManualAtTime(time.Unix(1700000000, 0))
	store := database.NewMemoryStore()
	tokens := auth.NewTokenService("handler-secret", 72*time.Hour, clock)
	svc := accounts.NewService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens)

	h := NewAccountHandler(svc, CookieConfig{Secure: false, MaxAge: tokens.TTL()})
	router := NewRouter(Routes(h), NewAuthenticator(svc, csrfEnforce))
	return &testEnv{router: router, store: store, clock: clock}
}

// client keeps the cookies set by previous responses, like a browser
type client struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
	noCSRF  bool
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, env: e, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	if csrf, ok := c.cookies[CSRFCookie]; ok && !c.noCSRF {
		req.Header.Set(CSRFHeader, csrf.Value)
	}

	rec := httptest.NewRecorder()
	c.env.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, message, decode(t, rec)["error"])
}

func assertMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, message, decode(t, rec)["message"])
}

func credentials(email string) map[string]interface{} {
	return map[string]interface{}{"email": email, "password": "Str0ng!pw"}
}

// signedUp returns a client holding a fresh session of an account with role
func (e *testEnv) signedUp(t *testing.T, email string, role models.Role, profile map[string]interface{}) *client {
	t.Helper()
	c := e.client(t)
	body := credentials(email)
	for k, v := range profile {
		body[k] = v
	}
	rec := c.do(http.MethodPost, "/signup", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	if role != models.RoleCoolKid {
		account, err := e.store.FindOne(context.Background(), models.AccountQuery{Email: email})
		require.NoError(t, err)
		require.NoError(t, e.store.SetRole(context.Background(), account.ID, role))
	}
	return c
}

func TestSignupSigninScenario(t *testing.T) {
	env := newTestEnv(t, true)
	c := env.client(t)

	rec := c.do(http.MethodPost, "/signup", map[string]interface{}{"email": "a@x.com", "password": "Str0ng!pw"})
	assertMessage(t, rec, http.StatusCreated, "User created successfully")

	env.clock.Advance(time.Second)
	rec = c.do(http.MethodPost, "/signin", map[string]interface{}{"email": "a@x.com", "password": "Str0ng!pw"})
	assertMessage(t, rec, http.StatusOK, "User successfully signed in")

	cookies := map[string]*http.Cookie{}
	for _, cookie := range rec.Result().Cookies() {
		cookies[cookie.Name] = cookie
	}
	require.Contains(t, cookies, AuthCookie)
	require.Contains(t, cookies, CSRFCookie)
	assert.True(t, cookies[AuthCookie].HttpOnly)
	assert.False(t, cookies[CSRFCookie].HttpOnly)
	assert.Equal(t, int((72 * time.Hour).Seconds()), cookies[AuthCookie].MaxAge)
	assert.Equal(t, cookies[AuthCookie].MaxAge, cookies[CSRFCookie].MaxAge)
}

func TestSignupFailures(t *testing.T) {
	env := newTestEnv(t, true)
	c := env.client(t)

	tests := []struct {
		name    string
		body    interface{}
		message string
	}{
		{"invalid json", "{", "Invalid JSON"},
		{"missing email", map[string]interface{}{"password": "Str0ng!pw"}, "Email is required!"},
		{"malformed email", map[string]interface{}{"email": "nope", "password": "Str0ng!pw"}, "Invalid email format"},
		{"weak password", map[string]interface{}{"email": "a@x.com", "password": "abcdefgh"}, "Password must be at least 6 characters long"},
		{"non-string email", map[string]interface{}{"email": 7}, "email must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, c.do(http.MethodPost, "/signup", tt.body), http.StatusBadRequest, tt.message)
		})
	}

	assertMessage(t, c.do(http.MethodPost, "/signup", credentials("a@x.com")), http.StatusCreated, "User created successfully")
	assertError(t, c.do(http.MethodPost, "/signup", credentials("a@x.com")), http.StatusBadRequest, "Email is taken!")
}

func TestLongPasswordIsRejected(t *testing.T) {
	env := newTestEnv(t, true)
	long := "Str0ng!pw" + strings.Repeat("a", 70)

	assertError(t, env.client(t).do(http.MethodPost, "/signup", map[string]interface{}{"email": "a@x.com", "password": long}),
		http.StatusBadRequest, "Password must be at least 6 characters long")

	c := env.signedUp(t, "b@x.com", models.RoleCoolKid, nil)
	assertError(t, c.do(http.MethodPut, "/update", map[string]interface{}{"password": long}),
		http.StatusBadRequest, "Password must be at least 6 characters long")
}

func TestSignupIgnoresReservedFields(t *testing.T) {
	env := newTestEnv(t, true)
	c := env.client(t)

	body := credentials("a@x.com")
	body["role"] = "Coolest Kid"
	body["firstName"] = "Ada"
	body["favouriteColour"] = "green"
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/signup", body).Code)

	rec := c.do(http.MethodGet, "/user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode(t, rec)
	assert.Equal(t, "Cool Kid", doc["role"])
	assert.Equal(t, "Ada", doc["firstName"])
	assert.Equal(t, "green", doc["favouriteColour"])
	assert.NotContains(t, doc, "password")
	assert.NotContains(t, doc, "token")
}

func TestSigninFailures(t *testing.T) {
	env := newTestEnv(t, true)
	env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)
	c := env.client(t)

	assertError(t, c.do(http.MethodPost, "/signin", credentials("b@x.com")), http.StatusNotFound, "Email does not exist")
	assertError(t, c.do(http.MethodPost, "/signin", map[string]interface{}{"email": "a@x.com", "password": "Wr0ng!pw"}),
		http.StatusBadRequest, "Wrong password")
	assert.Empty(t, c.cookies)
}

func TestSessionGate(t *testing.T) {
	env := newTestEnv(t, true)
	anonymous := env.client(t)

	assertError(t, anonymous.do(http.MethodGet, "/user", nil), http.StatusUnauthorized,
		"Unauthorized - Token missing. Please login or signup first.")

	anonymous.cookies[AuthCookie] = &http.Cookie{Name: AuthCookie, Value: "forged"}
	assertError(t, anonymous.do(http.MethodGet, "/user", nil), http.StatusUnauthorized,
		"Unauthorized - Invalid or expired token")

	c := env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/user", nil).Code)

	env.clock.Advance(72*time.Hour + time.Second)
	assertError(t, c.do(http.MethodGet, "/user", nil), http.StatusUnauthorized,
		"Unauthorized - Invalid or expired token")
}

func TestReplacedSessionIsRejected(t *testing.T) {
	env := newTestEnv(t, true)
	first := env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)

	env.clock.Advance(time.Second)
	second := env.client(t)
	require.Equal(t, http.StatusOK, second.do(http.MethodPost, "/signin", credentials("a@x.com")).Code)

	assertError(t, first.do(http.MethodGet, "/user", nil), http.StatusUnauthorized, "Unauthorized - Invalid or expired token")
	assert.Equal(t, http.StatusOK, second.do(http.MethodGet, "/user", nil).Code)
}

func TestCSRF(t *testing.T) {
	env := newTestEnv(t, true)
	c := env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)

	c.noCSRF = true
	assertError(t, c.do(http.MethodPut, "/update", map[string]interface{}{"country": "NL"}), http.StatusForbidden, "CSRF token missing")
	c.noCSRF = false

	req := httptest.NewRequest(http.MethodPut, "/update", bytes.NewBufferString(`{"country":"NL"}`))
	req.AddCookie(c.cookies[AuthCookie])
	req.AddCookie(c.cookies[CSRFCookie])
	req.Header.Set(CSRFHeader, "not-the-issued-one")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assertError(t, rec, http.StatusForbidden, "Invalid CSRF token")

	assertMessage(t, c.do(http.MethodPut, "/update", map[string]interface{}{"country": "NL"}), http.StatusOK, "User updated successfully")
}

func TestCSRFDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	c := env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)
	c.noCSRF = true

	assertMessage(t, c.do(http.MethodPut, "/update", map[string]interface{}{"country": "NL"}), http.StatusOK, "User updated successfully")
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t, true)
	c := env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)
	env.signedUp(t, "b@x.com", models.RoleCoolKid, nil)

	assertError(t, c.do(http.MethodPut, "/update", map[string]interface{}{"email": "b@x.com"}),
		http.StatusBadRequest, "Email is already taken by another user")
	assertError(t, c.do(http.MethodPut, "/update", map[string]interface{}{"$where": "1"}),
		http.StatusBadRequest, `invalid field name "$where"`)

	assertMessage(t, c.do(http.MethodPut, "/update", map[string]interface{}{
		"email":    "c@x.com",
		"password": "N3w!passw0rd",
		"lastName": "Lovelace",
	}), http.StatusOK, "User updated successfully")

	doc := decode(t, c.do(http.MethodGet, "/user", nil))
	assert.Equal(t, "c@x.com", doc["email"])
	assert.Equal(t, "Lovelace", doc["lastName"])

	other := env.client(t)
	assertMessage(t, other.do(http.MethodPost, "/signin", map[string]interface{}{"email": "c@x.com", "password": "N3w!passw0rd"}),
		http.StatusOK, "User successfully signed in")
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, true)
	c := env.signedUp(t, "a@x.com", models.RoleCoolKid, nil)
	token := c.cookies[AuthCookie]

	assertMessage(t, c.do(http.MethodDelete, "/delete", nil), http.StatusOK, "User successfully deleted")
	assert.NotContains(t, c.cookies, AuthCookie)
	assert.NotContains(t, c.cookies, CSRFCookie)

	c.cookies[AuthCookie] = token
	assertError(t, c.do(http.MethodGet, "/user", nil), http.StatusNotFound, "Requested user not found")
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t, true)
	profile := map[string]interface{}{"firstName": "Ada", "lastName": "Lovelace", "image": "ada.png", "country": "UK"}
	cool := env.signedUp(t, "cool@x.com", models.RoleCoolKid, profile)
	cooler := env.signedUp(t, "cooler@x.com", models.RoleCoolerKid, nil)
	coolest := env.signedUp(t, "coolest@x.com", models.RoleCoolestKid, nil)

	assertError(t, cool.do(http.MethodGet, "/users", nil), http.StatusForbidden,
		"Forbidden - Only Cooler or Coolest Kids are allowed to view other's data. Please change your role first")

	var coolerView []map[string]interface{}
	rec := cooler.do(http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coolerView))
	require.Len(t, coolerView, 3)
	assert.Equal(t, "Ada", coolerView[0]["firstName"])
	assert.Equal(t, "UK", coolerView[0]["country"])
	for _, p := range coolerView {
		assert.NotContains(t, p, "email")
		assert.NotContains(t, p, "role")
	}

	var coolestView []map[string]interface{}
	rec = coolest.do(http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coolestView))
	require.Len(t, coolestView, 3)
	assert.Equal(t, "cool@x.com", coolestView[0]["email"])
	assert.Equal(t, "Cool Kid", coolestView[0]["role"])
	assert.NotContains(t, coolestView[0], "password")
}

func TestRoleUpdate(t *testing.T) {
	env := newTestEnv(t, true)
	cool := env.signedUp(t, "cool@x.com", models.RoleCoolKid, map[string]interface{}{"firstName": "Ada", "lastName": "Lovelace"})
	coolest := env.signedUp(t, "coolest@x.com", models.RoleCoolestKid, nil)

	// a Cool Kid cannot promote itself
	assertError(t, cool.do(http.MethodPut, "/role-update", map[string]interface{}{"email": "cool@x.com", "role": "Coolest Kid"}),
		http.StatusForbidden, "Forbidden - Only Cooler or Coolest Kids are allowed to view other's data. Please change your role first")

	assertError(t, coolest.do(http.MethodPut, "/role-update", map[string]interface{}{"email": "cool@x.com", "role": "King"}),
		http.StatusBadRequest, "Invalid role provided. Allowed roles are 'Cool Kid', 'Cooler Kid', 'Coolest Kid'.")
	assertError(t, coolest.do(http.MethodPut, "/role-update", map[string]interface{}{"lastName": "Lovelace", "role": "Cooler Kid"}),
		http.StatusBadRequest, "Either email or both firstName and lastName must be provided to update the user's role.")
	assertError(t, coolest.do(http.MethodPut, "/role-update", map[string]interface{}{"email": "ghost@x.com", "role": "Cooler Kid"}),
		http.StatusNotFound, "No user found with the provided email or name combination.")

	assertMessage(t, coolest.do(http.MethodPut, "/role-update", map[string]interface{}{"firstName": "Ada", "lastName": "Lovelace", "role": "Cooler Kid"}),
		http.StatusOK, "User's role updated to Cooler Kid.")
	assertMessage(t, coolest.do(http.MethodPut, "/role-update", map[string]interface{}{"email": "cool@x.com", "role": "Cooler Kid"}),
		http.StatusOK, "User's role updated to Cooler Kid.")

	assert.Equal(t, http.StatusOK, cool.do(http.MethodGet, "/users", nil).Code)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, true)
	env.signedUp(t, "cool@x.com", models.RoleCoolKid, map[string]interface{}{"firstName": "Ada", "lastName": "Lovelace"})
	cooler := env.signedUp(t, "cooler@x.com", models.RoleCoolerKid, nil)

	assertError(t, cooler.do(http.MethodGet, "/search?firstName=Ada", nil), http.StatusBadRequest,
		"Either email or both firstName and lastName must be provided for the search.")

	rec := cooler.do(http.MethodGet, "/search?firstName=Ada&lastName=Lovelace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode(t, rec)
	assert.Equal(t, "Ada", doc["firstName"])
	assert.NotContains(t, doc, "email")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	rec := env.client(t).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestRoutesDeclareAccess(t *testing.T) {
	routes := Routes(&AccountHandler{})
	byName := map[string]Route{}
	for _, r := range routes {
		byName[r.Name] = r
	}

	assert.False(t, byName["Signup"].Access.Session)
	assert.False(t, byName["Signin"].Access.Session)
	assert.True(t, byName["UpdateRole"].Access.CSRF)
	assert.Equal(t, models.ElevatedRoles, byName["UpdateRole"].Access.Roles)
	assert.Equal(t, models.ElevatedRoles, byName["ListUsers"].Access.Roles)
	assert.Empty(t, byName["GetUser"].Access.Roles)
}
