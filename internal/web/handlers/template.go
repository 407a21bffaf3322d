package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"
	"github.com/shindakun/loginportal/internal/models"
	"github.com/shindakun/loginportal/internal/version"
)

// TemplateData holds common data passed to templates
type TemplateData struct {
	Session   *models.Session
	Login     *models.LoginPageData // login screen only
	UserJSON  string                // indented user object for the dashboard
	Version   string
	CSRFField template.HTML // hidden input for forms
	CSRFToken string        // for the meta tag read by HTMX requests
}

// templateFuncs returns custom template functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"humanTime": humanize.Time,
	}
}

// renderer holds one parsed template set per page plus the partials on their own
type renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	partials, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}

	pageFiles, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, file := range pageFiles {
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys,
			"templates/layouts/*.html",
			"templates/partials/*.html",
			file,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &renderer{pages: pages, partials: partials}, nil
}

// renderTemplate renders a page with the base layout
func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request, status int, page string, data TemplateData) error {
	tmpl, ok := h.renderer.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	h.fillCommon(r, &data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial renders a partial template (for HTMX)
func (h *Handlers) renderPartial(w http.ResponseWriter, r *http.Request, status int, partial string, data TemplateData) error {
	h.fillCommon(r, &data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return h.renderer.partials.ExecuteTemplate(w, partial, data)
}

func (h *Handlers) fillCommon(r *http.Request, data *TemplateData) {
	data.CSRFField = csrf.TemplateField(r)
	data.CSRFToken = csrf.Token(r)
	data.Version = version.GetVersion()
}

// indentJSON pretty-prints raw JSON for display, falling back to the raw text
func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
