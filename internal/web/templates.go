// ABOUTME: Template rendering functions and view data types
// ABOUTME: Loads templates from the embedded filesystem and renders them

package web

import (
	"html/template"
	"net/http"

	"github.com/formgate/formgate/internal/lead"
)

// Template data types
type formData struct {
	Title     string
	CSRFToken string
	Error     string
	Lead      lead.Lead
}

type loginData struct {
	Title          string
	CSRFToken      string
	Error          string
	LockoutSeconds int
}

type leadsData struct {
	Title     string
	CSRFToken string
	Error     string
	Leads     []lead.Lead
}

type helpData struct {
	Title     string
	CSRFToken string
	Body      string
}

func (s *Server) renderFormPage(w http.ResponseWriter, data formData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/form.html"))
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("rendering form page", "error", err)
	}
}

func (s *Server) renderThanksPage(w http.ResponseWriter) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/thanks.html"))
	if err := tmpl.ExecuteTemplate(w, "base", struct{ Title string }{Title: "Thank you"}); err != nil {
		s.logger.Error("rendering thanks page", "error", err)
	}
}

func (s *Server) renderLoginPage(w http.ResponseWriter, data loginData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/login.html"))
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("rendering login page", "error", err)
	}
}

func (s *Server) renderLeadsPage(w http.ResponseWriter, data leadsData) {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/leads.html"))
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("rendering leads page", "error", err)
	}
}

func (s *Server) renderHelpPage(w http.ResponseWriter, data helpData) {
	tmpl := template.Must(template.New("base").Funcs(template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}).ParseFS(templateFS, "templates/base.html", "templates/help.html"))
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("rendering help page", "error", err)
	}
}
