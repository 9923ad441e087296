package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roleboard/roleboard/internal/rbac"
	"github.com/roleboard/roleboard/internal/shared"
	"github.com/roleboard/roleboard/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Menu        []rbac.MenuEntry
	Profile     *shared.Profile
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	titler := cases.Title(language.English)
	funcMap := template.FuncMap{
		"title": func(s string) string {
			return titler.String(strings.ReplaceAll(s, "_", " "))
		},
		"inc": func(i int) int { return i + 1 },
		"active": func(current, href string) bool {
			return current == href || strings.HasPrefix(current, href+"/")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData. Output is buffered so a
// failing template never leaves a half-written page behind.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// NewTemplateData fills the per-request fields: CSRF token, pending flash,
// the menu filtered by the principal's permissions, and the signed-in profile.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Menu:        rbac.FilterMenu(rbac.DefaultMenu(), rbac.PrincipalFromContext(ctx).Permissions),
		Data:        data,
	}
	if sess != nil {
		if csrf != nil {
			td.CSRFToken, _ = csrf.EnsureToken(sess)
		}
		td.Flash = sess.PopFlash()
		if profile, ok := sess.Profile(); ok {
			td.Profile = &profile
		}
	}
	return td
}
