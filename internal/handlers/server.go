package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"casehub-backend/internal/auth"
	"casehub-backend/internal/config"
	"casehub-backend/internal/middleware"
	"casehub-backend/internal/validation"
)

// Check reports whether a backing service is reachable.
type Check func(ctx context.Context) error

// Server holds the handlers that are not tied to a domain package: admin
// login and health.
type Server struct {
	Cfg    *config.Config
	Val    *validation.Validator
	Log    *slog.Logger
	Tokens *auth.Manager
	Checks map[string]Check
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
