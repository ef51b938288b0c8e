package devauth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the auth endpoints. Login and refresh are rate limited per
// client IP.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)
	r.With(RateLimitByIP(s.cfg.RateLimitPerMinute)).Post("/auth/login", s.Login)
	r.With(RateLimitByIP(s.cfg.RateLimitPerMinute)).Post("/auth/refresh", s.Refresh)
	r.Post("/auth/logout", s.Logout)

	r.Group(func(r chi.Router) {
		r.Use(RequireAccess(s.issuer))
		r.Get("/me", s.Me)
	})
	return r
}
