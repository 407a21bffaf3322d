package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/shindakun/loginportal/internal/auth"
	"github.com/shindakun/loginportal/internal/config"
	"github.com/shindakun/loginportal/internal/login"
	"github.com/shindakun/loginportal/internal/models"
	"github.com/shindakun/loginportal/internal/web"
	"github.com/shindakun/loginportal/internal/web/middleware"
)

// LoginPath is where the login screen is served
const LoginPath = "/login"

// MissingFieldsMessage is shown when a plain form post arrives without email or password
const MissingFieldsMessage = "Email e senha são obrigatórios."

// Handlers holds dependencies for HTTP handlers
type Handlers struct {
	sessionManager *auth.SessionManager
	authenticator  login.Authenticator
	pages          config.PagesConfig
	renderer       *renderer
	static         http.Handler
}

// New creates a new Handlers instance with templates parsed from the embedded filesystem
func New(sessionManager *auth.SessionManager, authenticator login.Authenticator, pages config.PagesConfig) (*Handlers, error) {
	rndr, err := newRenderer(web.Templates)
	if err != nil {
		return nil, err
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}

	return &Handlers{
		sessionManager: sessionManager,
		authenticator:  authenticator,
		pages:          pages,
		renderer:       rndr,
		static:         http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
	}, nil
}

// Landing renders the landing page (check auth, redirect if authenticated)
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		http.Redirect(w, r, h.pages.DashboardPath, http.StatusSeeOther)
		return
	}

	if err := h.renderTemplate(w, r, http.StatusOK, "landing", TemplateData{}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error rendering landing template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// LoginPage renders the login screen in its idle state
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		http.Redirect(w, r, h.pages.DashboardPath, http.StatusSeeOther)
		return
	}

	form, scr := h.newForm(w, r)
	defer form.Close()

	data := TemplateData{Login: scr.pageData(form)}
	if err := h.renderTemplate(w, r, http.StatusOK, "login", data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error rendering login template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// LoginSubmit runs the login flow for a posted form. HTMX requests get the
// login panel back, plain posts get the whole page.
func (h *Handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn().Err(err).Msg("failed to parse login form")
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	form, scr := h.newForm(w, r)
	defer form.Close()

	form.SetEmail(r.PostFormValue("email"))
	form.SetPassword(r.PostFormValue("password"))

	status := http.StatusOK
	err := form.Submit(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, login.ErrMissingField):
		status = http.StatusBadRequest
		scr.Show(models.Notification{
			Variant:     models.VariantDestructive,
			Title:       login.ErrorTitle,
			Description: MissingFieldsMessage,
		})
	default:
		status = http.StatusUnauthorized
	}

	data := TemplateData{Login: scr.pageData(form)}

	if middleware.IsHTMX(r) {
		// htmx does not swap error responses by default
		if err := h.renderPartial(w, r, http.StatusOK, "login_panel", data); err != nil {
			logger.Error().Err(err).Msg("error rendering login panel")
		}
		return
	}

	if err := h.renderTemplate(w, r, status, "login", data); err != nil {
		logger.Error().Err(err).Msg("error rendering login template")
	}
}

// NavigateHome handles the back link on the login screen
func (h *Handlers) NavigateHome(w http.ResponseWriter, r *http.Request) {
	form, scr := h.newForm(w, r)
	defer form.Close()

	form.NavigateHome()
	h.navigate(w, r, scr.target)
}

// NavigateRegister handles the register link on the login screen
func (h *Handlers) NavigateRegister(w http.ResponseWriter, r *http.Request) {
	form, scr := h.newForm(w, r)
	defer form.Close()

	form.NavigateToRegister()
	h.navigate(w, r, scr.target)
}

// Dashboard renders the user dashboard (protected route)
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.GetSessionFromContext(r.Context())
	if !ok || session == nil {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	data := TemplateData{
		Session:  session,
		UserJSON: indentJSON(session.User),
	}

	if err := h.renderTemplate(w, r, http.StatusOK, "dashboard", data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error rendering dashboard template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Logout clears the session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.ClearSession(w, r); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to clear session")
	}
	h.navigate(w, r, LoginPath)
}

// ServeStatic serves the embedded static files
func (h *Handlers) ServeStatic(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}

// NotFound renders the 404 page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if err := h.renderTemplate(w, r, http.StatusNotFound, "404", TemplateData{}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error rendering 404 template")
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *Handlers) signedIn(r *http.Request) bool {
	session, err := h.sessionManager.GetSession(r)
	return err == nil && session != nil && session.IsActive()
}

// navigate sends the browser to path, through HX-Redirect for htmx requests
func (h *Handlers) navigate(w http.ResponseWriter, r *http.Request, path string) {
	if middleware.IsHTMX(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// newForm builds a login form whose collaborators record what happened during
// this request so it can be rendered into the response
func (h *Handlers) newForm(w http.ResponseWriter, r *http.Request) (*login.Form, *screen) {
	scr := &screen{}
	form := login.New(h.authenticator, h.sessionManager.ForRequest(w, r), scr, scr, login.Options{
		Paths: login.Paths{
			Home:      h.pages.HomePath,
			Register:  h.pages.RegisterPath,
			Dashboard: h.pages.DashboardPath,
		},
		RedirectDelay: h.pages.RedirectDelay,
		Schedule:      scr.schedule,
	})
	return form, scr
}

// screen is the per-request navigator and notifier of a login form. The
// redirect timer runs in the browser, so scheduling resolves the target now
// and only records the delay.
type screen struct {
	target string
	delay  time.Duration
	toast  *models.Notification
}

func (s *screen) GoTo(path string) {
	s.target = path
}

func (s *screen) Show(n models.Notification) {
	s.toast = &n
}

func (s *screen) schedule(d time.Duration, fn func()) func() bool {
	s.delay = d
	fn()
	return func() bool { return false }
}

func (s *screen) pageData(form *login.Form) *models.LoginPageData {
	view := form.View()
	return &models.LoginPageData{
		Email:           view.Email,
		SubmitLabel:     view.SubmitLabel,
		SubmitDisabled:  view.SubmitDisabled,
		LoadingLabel:    login.LoadingLabel,
		Toast:           s.toast,
		RedirectTo:      s.target,
		RedirectDelayMS: s.delay.Milliseconds(),
	}
}

// Register renders the registration screen
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := h.renderTemplate(w, r, http.StatusOK, "register", TemplateData{}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error rendering register template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
