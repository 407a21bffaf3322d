package models

// LoginPageData represents the data passed to the login template for rendering.
// It contains all information needed to display the login page with its
// notification and form repopulation.
type LoginPageData struct {
	// Email is pre-populated after a failed attempt so users don't have to re-type.
	// The password is never echoed back.
	Email string

	// SubmitLabel is "Entrar" when idle and "Entrando..." while a request is in flight.
	SubmitLabel string

	// SubmitDisabled mirrors the loading flag of the form.
	SubmitDisabled bool

	// LoadingLabel is swapped in client-side while an HTMX request is pending.
	LoadingLabel string

	// Toast is the notification raised by the last submit, nil when there is none.
	Toast *Notification

	// RedirectTo and RedirectDelayMS describe a scheduled navigation after success.
	RedirectTo      string
	RedirectDelayMS int64
}
