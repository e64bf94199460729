package handlers

import (
	"context"
	"net/http"

	"account-service/models"

	"github.com/gorilla/mux"
)

// Route is one entry of the capability table
type Route struct {
	Name    string
	Method  string
	Path    string
	Access  Access
	Handler HandlerFunc
}

var (
	public        = Access{}
	sessionOnly   = Access{Session: true}
	sessionCSRF   = Access{Session: true, CSRF: true}
	elevated      = Access{Session: true, Roles: models.ElevatedRoles}
	elevatedWrite = Access{Session: true, Roles: models.ElevatedRoles, CSRF: true}
)

// Routes returns the capability table of the account service
func Routes(h *AccountHandler) []Route {
	return []Route{
		{Name: "HealthCheck", Method: http.MethodGet, Path: "/health", Access: public, Handler: Health},
		{Name: "Signup", Method: http.MethodPost, Path: "/signup", Access: public, Handler: h.Signup},
		{Name: "Signin", Method: http.MethodPost, Path: "/signin", Access: public, Handler: h.Signin},
		{Name: "UpdateUser", Method: http.MethodPut, Path: "/update", Access: sessionCSRF, Handler: h.Update},
		{Name: "DeleteUser", Method: http.MethodDelete, Path: "/delete", Access: sessionCSRF, Handler: h.Delete},
		{Name: "GetUser", Method: http.MethodGet, Path: "/user", Access: sessionOnly, Handler: h.GetUser},
		{Name: "UpdateRole", Method: http.MethodPut, Path: "/role-update", Access: elevatedWrite, Handler: h.UpdateRole},
		{Name: "ListUsers", Method: http.MethodGet, Path: "/users", Access: elevated, Handler: h.ListUsers},
		{Name: "SearchUser", Method: http.MethodGet, Path: "/search", Access: elevated, Handler: h.SearchUser},
	}
}

// NewRouter registers every route behind the authenticator
func NewRouter(routes []Route, authn *Authenticator) *mux.Router {
	router := mux.NewRouter()
	for _, route := range routes {
		route := route
		guarded := authn.Require(route.Access, route.Handler)
		router.Handle(route.Path, HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			ctx = withRoute(ctx, route)
			guarded(ctx, w, r.WithContext(ctx))
		})).Methods(route.Method).Name(route.Name)
	}
	return router
}
