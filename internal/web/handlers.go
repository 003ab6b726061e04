// ABOUTME: HTTP handlers for lead capture, admin login, and the leads table
// ABOUTME: Auth failures render inline messages; storage failures become 500s

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/formgate/formgate/internal/config"
	"github.com/formgate/formgate/internal/gate"
	"github.com/formgate/formgate/internal/lead"
	"github.com/formgate/formgate/internal/webhook"
)

// handleFormPage renders the public lead-capture form.
func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	r, csrfToken := s.ensureCSRFToken(w, r)
	s.renderFormPage(w, formData{Title: "Get in touch", CSRFToken: csrfToken})
}

// handleSubmit validates the form and forwards the lead to the submit
// webhook. If the webhook is unreachable the lead is spooled for retry; the
// visitor sees success either way.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	if !s.validateCSRF(r) {
		http.Error(w, "invalid request, please reload the page", http.StatusForbidden)
		return
	}

	l := lead.Lead{
		ID:          uuid.New().String(),
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		Company:     r.FormValue("company"),
		Message:     r.FormValue("message"),
		Source:      "web-form",
		SubmittedAt: time.Now().UTC(),
	}

	if err := l.Validate(); err != nil {
		s.metrics.countSubmission("rejected")
		_, csrfToken := s.ensureCSRFToken(w, r)
		s.renderFormPage(w, formData{
			Title:     "Get in touch",
			CSRFToken: csrfToken,
			Error:     err.Error(),
			Lead:      l,
		})
		return
	}

	client, err := s.webhookClient()
	if err != nil {
		s.logger.Error("reading settings", "error", err)
		http.Error(w, "an error occurred", http.StatusInternalServerError)
		return
	}

	if err := client.Submit(r.Context(), l); err != nil {
		s.logger.Warn("webhook submit failed, spooling", "error", err)
		if _, spoolErr := s.spool.Enqueue(r.Context(), l); spoolErr != nil {
			s.logger.Error("spooling lead failed", "error", spoolErr)
			s.metrics.countSubmission("lost")
			http.Error(w, "an error occurred, please try again", http.StatusInternalServerError)
			return
		}
		s.metrics.countSubmission("spooled")
	} else {
		s.metrics.countSubmission("delivered")
	}

	s.renderThanksPage(w)
}

// handleHealth reports liveness and the spool backlog.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pending, err := s.spool.PendingCount(r.Context())
	if err != nil {
		http.Error(w, `{"status":"degraded"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"spool_pending": pending,
	})
}

// handleLoginPage renders the admin login page.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// Already logged in
	if s.isAuthenticated(r) {
		http.Redirect(w, r, "/admin/", http.StatusSeeOther)
		return
	}

	r, csrfToken := s.ensureCSRFToken(w, r)
	data := loginData{Title: "Admin login", CSRFToken: csrfToken}

	// Surface an active lockout immediately, before any attempt
	if remaining, err := s.gate.LockoutRemainingSeconds(); err == nil && remaining > 0 {
		data.LockoutSeconds = remaining
	}

	s.renderLoginPage(w, data)
}

// handleLogin processes the password form through the gate.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r, csrfToken := s.ensureCSRFToken(w, r)

	if err := r.ParseForm(); err != nil {
		s.renderLoginPage(w, loginData{Title: "Admin login", CSRFToken: csrfToken, Error: "Invalid form data"})
		return
	}
	if !s.validateCSRF(r) {
		s.renderLoginPage(w, loginData{Title: "Admin login", CSRFToken: csrfToken, Error: "Invalid request, please try again"})
		return
	}

	password := r.FormValue("password")
	if password == "" {
		s.renderLoginPage(w, loginData{Title: "Admin login", CSRFToken: csrfToken, Error: "Password required"})
		return
	}

	settings, err := s.settings.Read()
	if err != nil {
		if errors.Is(err, config.ErrSettingsCorrupt) {
			s.logger.Error("settings blob unreadable", "error", err)
		} else {
			s.logger.Error("reading settings", "error", err)
		}
		s.renderLoginPage(w, loginData{Title: "Admin login", CSRFToken: csrfToken, Error: "An error occurred"})
		return
	}

	result, err := s.gate.Authenticate(password, settings.AdminPassword)
	if errors.Is(err, gate.ErrNotConfigured) {
		// Misconfiguration, not an auth failure: point at the settings flow
		s.renderLoginPage(w, loginData{
			Title:     "Admin login",
			CSRFToken: csrfToken,
			Error:     "No admin password is configured. Set one with: formgate-admin set-password",
		})
		return
	}
	if err != nil {
		s.logger.Error("authentication failed", "error", err)
		s.renderLoginPage(w, loginData{Title: "Admin login", CSRFToken: csrfToken, Error: "An error occurred"})
		return
	}

	if !result.OK {
		if result.Locked {
			s.metrics.countAuth("lockout")
		} else {
			s.metrics.countAuth("failure")
		}
		s.renderLoginPage(w, loginData{
			Title:          "Admin login",
			CSRFToken:      csrfToken,
			Error:          result.Message,
			LockoutSeconds: result.RetryAfterSeconds,
		})
		return
	}

	if err := s.setSessionCookie(w, r, result.Token); err != nil {
		s.logger.Error("setting session cookie", "error", err)
		s.renderLoginPage(w, loginData{Title: "Admin login", CSRFToken: csrfToken, Error: "An error occurred"})
		return
	}

	s.metrics.countAuth("success")
	http.Redirect(w, r, "/admin/", http.StatusSeeOther)
}

// handleLogout clears the gate session and the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		if !s.validateCSRF(r) {
			s.logger.Warn("logout request with invalid CSRF token")
		}
	}

	if err := s.gate.ClearSession(); err != nil {
		s.logger.Error("clearing session", "error", err)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// handleLockoutStatus backs the login page's one-second countdown poll.
// Read-only; safe to call while a login attempt is in flight.
func (s *Server) handleLockoutStatus(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.gate.LockoutRemainingSeconds()
	if err != nil {
		http.Error(w, "an error occurred", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"locked":            remaining > 0,
		"remaining_seconds": remaining,
	})
}

// handleLeads fetches leads from the read webhook and renders the table.
func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	r, csrfToken := s.ensureCSRFToken(w, r)

	client, err := s.webhookClient()
	if err != nil {
		s.logger.Error("reading settings", "error", err)
		http.Error(w, "an error occurred", http.StatusInternalServerError)
		return
	}

	data := leadsData{Title: "Leads", CSRFToken: csrfToken}

	leads, err := client.FetchLeads(r.Context())
	switch {
	case errors.Is(err, webhook.ErrNotConfigured):
		data.Error = "No read webhook is configured. Set one with: formgate-admin set-webhooks"
	case err != nil:
		s.logger.Error("fetching leads", "error", err)
		data.Error = "Could not fetch leads from the automation system."
	default:
		data.Leads = leads
	}

	s.renderLeadsPage(w, data)
}

// handleHelp renders the embedded admin help document.
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	r, csrfToken := s.ensureCSRFToken(w, r)

	source, err := helpDocsFS.ReadFile("docs/help/admin.md")
	if err != nil {
		http.Error(w, "help not available", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(source, &buf); err != nil {
		s.logger.Error("rendering help", "error", err)
		http.Error(w, "an error occurred", http.StatusInternalServerError)
		return
	}

	s.renderHelpPage(w, helpData{Title: "Help", CSRFToken: csrfToken, Body: buf.String()})
}
