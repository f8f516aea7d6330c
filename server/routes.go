package server

import "github.com/taskhive/identity/internal/obs"

// Route patterns. Authentication endpoints, health and metrics are exempt
// from both bearer validation and tenant resolution.
const (
	RouteLogin     = "POST /auth/login"
	RouteRefresh   = "POST /auth/refresh"
	RouteLogout    = "POST /auth/logout"
	RouteLogoutAll = "POST /auth/logout-all"
	RouteMe        = "GET /me"
	RouteHealth    = "GET /healthz"
	RouteMetrics   = "GET /metrics"
)

func (s *Server) initRoutes() {
	api := s.APIMiddleware()

	s.RegisterRouteFunc(RouteLogin, ChainMiddleware(s.LoginHandler, api...))
	s.RegisterRouteFunc(RouteRefresh, ChainMiddleware(s.RefreshHandler, api...))
	s.RegisterRouteFunc(RouteLogout, ChainMiddleware(s.LogoutHandler, api...))

	// Authenticated, tenant-scoped routes.
	authed := append(s.APIMiddleware(), s.RequireAuth(), s.ResolveTenant())
	s.RegisterRouteFunc(RouteMe, ChainMiddleware(s.MeHandler, authed...))
	s.RegisterRouteFunc(RouteLogoutAll, ChainMiddleware(s.LogoutAllHandler, append(s.APIMiddleware(), s.RequireAuth())...))

	s.RegisterRouteFunc(RouteHealth, s.HealthHandler)
	s.RegisterRouteHandler(RouteMetrics, obs.Handler())
}
