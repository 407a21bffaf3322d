// Package login implements the login screen: field state, the submit flow
// against the upstream auth API, and the post-login redirect.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shindakun/loginportal/internal/authclient"
	"github.com/shindakun/loginportal/internal/metrics"
	"github.com/shindakun/loginportal/internal/models"
)

const (
	SubmitLabel  = "Entrar"
	LoadingLabel = "Entrando..."

	SuccessTitle       = "Login realizado com sucesso!"
	SuccessDescription = "Redirecionando para o dashboard..."
	ErrorTitle         = "Erro"

	DefaultRedirectDelay = 1500 * time.Millisecond
)

var (
	// ErrMissingField is returned when email or password is empty. No request is made.
	ErrMissingField = errors.New("email and password are required")
	// ErrSubmitInFlight is returned when Submit is called while a request is pending
	ErrSubmitInFlight = errors.New("login request already in flight")
	// ErrClosed is returned once the form has been closed
	ErrClosed = errors.New("login form closed")
)

// Authenticator performs the upstream login call
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error)
}

// SessionStore receives the credentials of a successful login in one write
type SessionStore interface {
	SetAuth(token, refreshToken string, user json.RawMessage) error
}

// Navigator changes the displayed screen
type Navigator interface {
	GoTo(path string)
}

// Notifier shows transient feedback
type Notifier interface {
	Show(n models.Notification)
}

// ScheduleFunc runs fn once after d. The returned function cancels the run
// and reports whether it was still pending.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func() bool)

// AfterFunc schedules on a real timer
func AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Paths are the screens the form can navigate to
type Paths struct {
	Home      string
	Register  string
	Dashboard string
}

// DefaultPaths returns the stock navigation targets
func DefaultPaths() Paths {
	return Paths{Home: "/", Register: "/register", Dashboard: "/dashboard"}
}

// Options tune a Form. Zero values fall back to defaults.
type Options struct {
	Paths         Paths
	RedirectDelay time.Duration
	Schedule      ScheduleFunc
}

// View is the render state of the form
type View struct {
	Email          string
	SubmitLabel    string
	SubmitDisabled bool
}

// Form holds the email/password fields and runs the submit flow.
// A Form owns its pending redirect; Close cancels it.
type Form struct {
	auth     Authenticator
	store    SessionStore
	nav      Navigator
	notifier Notifier

	paths    Paths
	delay    time.Duration
	schedule ScheduleFunc

	mu             sync.Mutex
	email          string
	password       string
	cancelRedirect func() bool

	loading atomic.Bool
	closed  atomic.Bool
}

// New creates a form wired to its collaborators
func New(auth Authenticator, store SessionStore, nav Navigator, notifier Notifier, opts Options) *Form {
	paths := opts.Paths
	defaults := DefaultPaths()
	if paths.Home == "" {
		paths.Home = defaults.Home
	}
	if paths.Register == "" {
		paths.Register = defaults.Register
	}
	if paths.Dashboard == "" {
		paths.Dashboard = defaults.Dashboard
	}

	delay := opts.RedirectDelay
	if delay == 0 {
		delay = DefaultRedirectDelay
	}

	schedule := opts.Schedule
	if schedule == nil {
		schedule = AfterFunc
	}

	return &Form{
		auth:     auth,
		store:    store,
		nav:      nav,
		notifier: notifier,
		paths:    paths,
		delay:    delay,
		schedule: schedule,
	}
}

func (f *Form) SetEmail(email string) {
	f.mu.Lock()
	f.email = email
	f.mu.Unlock()
}

func (f *Form) SetPassword(password string) {
	f.mu.Lock()
	f.password = password
	f.mu.Unlock()
}

func (f *Form) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

// IsLoading is true strictly while a login request is in flight
func (f *Form) IsLoading() bool {
	return f.loading.Load()
}

// View returns what the screen should show right now
func (f *Form) View() View {
	loading := f.IsLoading()
	label := SubmitLabel
	if loading {
		label = LoadingLabel
	}
	return View{
		Email:          f.Email(),
		SubmitLabel:    label,
		SubmitDisabled: loading,
	}
}

// Submit posts the current fields to the authenticator. On success the session
// is stored, a success notification is shown and the dashboard redirect is
// scheduled. On failure a destructive notification is shown. The returned error
// is for the caller's logging; the user has already been notified.
func (f *Form) Submit(ctx context.Context) error {
	if f.closed.Load() {
		return ErrClosed
	}

	f.mu.Lock()
	creds := models.Credentials{Email: f.email, Password: f.password}
	f.mu.Unlock()

	if creds.Email == "" || creds.Password == "" {
		return ErrMissingField
	}

	if !f.loading.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer f.loading.Store(false)

	logger := zerolog.Ctx(ctx).With().Str("component", "login").Logger()

	resp, err := f.auth.Login(ctx, creds)

	// The screen may have gone away while the request was pending
	if f.closed.Load() {
		logger.Debug().Msg("login resolved after form closed, dropping result")
		return ErrClosed
	}

	if err != nil {
		f.fail(logger, kindLabel(err), err)
		return err
	}

	if err := f.store.SetAuth(resp.Token, resp.RefreshToken, resp.User); err != nil {
		err = fmt.Errorf("failed to store session: %w", err)
		f.fail(logger, "store", err)
		return err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	logger.Info().Msg("login succeeded")

	f.notifier.Show(models.Notification{
		Variant:     models.VariantDefault,
		Title:       SuccessTitle,
		Description: SuccessDescription,
	})
	f.scheduleRedirect()

	return nil
}

func (f *Form) fail(logger zerolog.Logger, kind string, err error) {
	metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
	metrics.LoginFailuresTotal.WithLabelValues(kind).Inc()
	logger.Warn().Err(err).Str("kind", kind).Msg("login failed")

	f.notifier.Show(models.Notification{
		Variant:     models.VariantDestructive,
		Title:       ErrorTitle,
		Description: UserMessage(err),
	})
}

func (f *Form) scheduleRedirect() {
	f.mu.Lock()
	previous := f.cancelRedirect
	f.cancelRedirect = nil
	f.mu.Unlock()
	if previous != nil {
		previous()
	}

	cancel := f.schedule(f.delay, func() {
		if f.closed.Load() {
			return
		}
		f.nav.GoTo(f.paths.Dashboard)
	})

	f.mu.Lock()
	f.cancelRedirect = cancel
	f.mu.Unlock()
}

// NavigateHome goes back to the landing screen
func (f *Form) NavigateHome() {
	f.nav.GoTo(f.paths.Home)
}

// NavigateToRegister goes to the registration screen
func (f *Form) NavigateToRegister() {
	f.nav.GoTo(f.paths.Register)
}

// Close tears the form down. A pending redirect is cancelled and a request
// still in flight will have its result dropped.
func (f *Form) Close() {
	f.closed.Store(true)

	f.mu.Lock()
	cancel := f.cancelRedirect
	f.cancelRedirect = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// UserMessage is the notification text for err
func UserMessage(err error) string {
	var authErr *authclient.Error
	if errors.As(err, &authErr) {
		return authErr.UserMessage()
	}
	return authclient.FallbackMessage
}

func kindLabel(err error) string {
	return authclient.KindOf(err).String()
}
