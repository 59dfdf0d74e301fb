package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"casehub-backend/internal/auth"
	"casehub-backend/internal/httpx"
	"casehub-backend/internal/middleware"
	"casehub-backend/internal/transport"
)

// The refresh cookie only travels to the auth endpoints.
const refreshCookiePath = "/api/v1/admin"

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AdminSessionResponse answers login, refresh and /me.
type AdminSessionResponse struct {
	Admin     string     `json:"admin"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) AdminLogin(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminLoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin login: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if s.Cfg.AdminPasswordHash == "" || s.Tokens == nil {
		log.Warn("admin login: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	if err := auth.VerifyAdmin(s.Cfg.AdminUser, s.Cfg.AdminPasswordHash, req.Username, req.Password); err != nil {
		log.Warn("admin login: invalid credentials", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	s.startAdminSession(w, r, req.Username, "admin login")
}

func (s *Server) AdminRefresh(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.Tokens == nil {
		log.Warn("admin refresh: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	cookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || cookie.Value == "" {
		log.Warn("admin refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	claims, err := s.Tokens.Authorize(cookie.Value, auth.KindRefresh)
	if err != nil {
		log.Warn("admin refresh: rejected", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	s.startAdminSession(w, r, claims.Subject, "admin refresh")
}

func (s *Server) AdminLogout(w http.ResponseWriter, r *http.Request) {
	for _, c := range []struct{ name, path string }{
		{auth.AccessCookie, "/"},
		{auth.RefreshCookie, refreshCookiePath},
	} {
		http.SetCookie(w, s.authCookie(c.name, "", c.path, -1))
	}
	s.logWithRequest(r).Info("admin logout: ok")
	w.WriteHeader(http.StatusNoContent)
}

// AdminMe reports who the protected routes see; it sits behind AdminAuth.
func (s *Server) AdminMe(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, AdminSessionResponse{Admin: middleware.AdminFromContext(r.Context())})
}

func (s *Server) startAdminSession(w http.ResponseWriter, r *http.Request, subject, op string) {
	log := s.logWithRequest(r)
	pair, err := s.Tokens.IssuePair(subject)
	if err != nil {
		log.Error(op+": sign error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return
	}
	http.SetCookie(w, s.authCookie(auth.AccessCookie, pair.Access, "/", int(s.Tokens.AccessTTL.Seconds())))
	http.SetCookie(w, s.authCookie(auth.RefreshCookie, pair.Refresh, refreshCookiePath, int(s.Tokens.RefreshTTL.Seconds())))

	expires := time.Now().Add(s.Tokens.AccessTTL).UTC()
	log.Info(op+": ok", slog.String("username", subject))
	transport.WriteJSON(w, http.StatusOK, AdminSessionResponse{Admin: subject, ExpiresAt: &expires})
}

// authCookie builds an HttpOnly admin cookie; maxAge < 0 deletes it.
func (s *Server) authCookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   s.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
