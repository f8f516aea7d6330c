package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/taskhive/identity/auth"
	"github.com/taskhive/identity/internal/config"
	"github.com/taskhive/identity/tenants"
	"github.com/taskhive/identity/token"
)

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     *auth.Service
	issuer   *token.Issuer
	resolver *tenants.Resolver
}

func New(cfg config.Config, authService *auth.Service, issuer *token.Issuer, resolver *tenants.Resolver) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		auth:     authService,
		issuer:   issuer,
		resolver: resolver,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Info().Str("path", parts[0]).Msg("route")
		}
	}
}
