// ABOUTME: HTTP surface for the lead form and the password-gated admin view
// ABOUTME: Provides routing, CSRF protection, and the JWT session cookie

package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/formgate/formgate/internal/config"
	"github.com/formgate/formgate/internal/gate"
	"github.com/formgate/formgate/internal/spool"
	"github.com/formgate/formgate/internal/webhook"
)

const (
	// SessionCookieName is the name of the admin session cookie
	SessionCookieName = "formgate_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "formgate_csrf"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const csrfContextKey contextKey = "csrf_token"

// Config wires the server's collaborators.
type Config struct {
	Settings *config.SettingsStore
	Gate     *gate.Gate
	Spool    *spool.Store
	Metrics  *Metrics // nil disables the /metrics endpoint

	// WebhookHTTPClient overrides the webhook client's HTTP client. Used in tests.
	WebhookHTTPClient *http.Client
}

// Server handles the public form and admin routes.
type Server struct {
	settings   *config.SettingsStore
	gate       *gate.Gate
	spool      *spool.Store
	metrics    *Metrics
	httpClient *http.Client
	jwtSecret  []byte
	logger     *slog.Logger
}

// New creates a Server. The session cookie signing secret is random per
// process; gate sessions are ephemeral anyway, so cookies from a previous
// process are worthless by construction.
func New(cfg Config) (*Server, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}

	return &Server{
		settings:   cfg.Settings,
		gate:       cfg.Gate,
		spool:      cfg.Spool,
		metrics:    cfg.Metrics,
		httpClient: cfg.WebhookHTTPClient,
		jwtSecret:  secret,
		logger:     slog.Default().With("component", "web"),
	}, nil
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /{$}", s.handleFormPage)
	mux.HandleFunc("POST /submit", s.handleSubmit)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Admin routes
	mux.HandleFunc("GET /admin/login", s.handleLoginPage)
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("POST /admin/logout", s.handleLogout)
	mux.HandleFunc("GET /admin/lockout", s.handleLockoutStatus)
	mux.HandleFunc("GET /admin/", s.requireAuth(s.handleLeads))
	mux.HandleFunc("GET /admin", s.requireAuth(s.handleLeads))
	mux.HandleFunc("GET /admin/help", s.requireAuth(s.handleHelp))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.logger.Info("routes registered")
}

// webhookClient builds a client from the current settings. Settings can be
// rewritten by the admin CLI while the server runs, so clients are per-use.
func (s *Server) webhookClient() (*webhook.Client, error) {
	settings, err := s.settings.Read()
	if err != nil {
		return nil, err
	}
	return webhook.New(webhook.Config{
		SubmitURL:  settings.SubmitWebhookURL,
		ReadURL:    settings.ReadWebhookURL,
		HTTPClient: s.httpClient,
	}), nil
}

// requireAuth wraps a handler to require a live gate session.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isAuthenticated(r) {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// isAuthenticated checks the session cookie against the gate. The cookie is
// a signed wrapper; session validity (the 30-minute window) is the gate's
// decision alone, checked lazily on every call.
func (s *Server) isAuthenticated(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}

	token, err := s.verifySessionCookie(cookie.Value)
	if err != nil {
		return false
	}

	ok, err := s.gate.MatchesSession(token)
	if err != nil {
		s.logger.Error("session check failed", "error", err)
		return false
	}
	return ok
}

// mintSessionCookie signs the gate session token into a cookie value.
func (s *Server) mintSessionCookie(gateToken string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": gateToken,
		"iat": now.Unix(),
		"exp": now.Add(gate.SessionDuration).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// verifySessionCookie validates the cookie signature and extracts the gate
// session token from the "sub" claim.
func (s *Server) verifySessionCookie(value string) (string, error) {
	token, err := jwt.Parse(value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid session cookie")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid session claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}

// setSessionCookie mints and sets the session cookie for a gate token.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, gateToken string) error {
	signed, err := s.mintSessionCookie(gateToken)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/admin",
		Expires:  time.Now().Add(gate.SessionDuration),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// clearSessionCookie expires the session cookie.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (s *Server) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from the form against the cookie
func (s *Server) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// generateSecureToken generates a cryptographically secure random hex token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
