package middleware

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/shindakun/loginportal/internal/models"
	"github.com/shindakun/loginportal/internal/web"
)

// ToasterID is the element htmx error toasts are swapped into
const ToasterID = "toaster"

var toastTemplate = template.Must(template.ParseFS(web.Templates, "templates/partials/toast.html"))

// writeHTMXToast answers an htmx request with a destructive toast aimed at the
// toaster instead of the request's own target. The status is kept; login.js
// lets htmx swap it.
func writeHTMXToast(w http.ResponseWriter, r *http.Request, status int, description string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Retarget", "#"+ToasterID)
	w.Header().Set("HX-Reswap", "innerHTML")
	w.WriteHeader(status)

	err := toastTemplate.ExecuteTemplate(w, "toast", &models.Notification{
		Variant:     models.VariantDestructive,
		Title:       "Erro",
		Description: description,
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to render toast")
	}
}
