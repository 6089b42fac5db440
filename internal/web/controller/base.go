package controller

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog"

	"camelwiki/internal/auth"
	"camelwiki/internal/web/viewmodels"
)

// Base holds what every controller needs to render a full page.
type Base struct {
	AuthService *auth.Service
	Templates   map[string]*template.Template
	StartPage   string
}

// pageData fills in the signed-in user and the log in/out link. Logging out
// goes to the start page; logging in comes back to the current path.
func (b *Base) pageData(r *http.Request) viewmodels.PageData {
	identity := auth.IdentityFromContext(r.Context())
	data := viewmodels.PageData{
		CurrentUser: identity,
		IsLoggedIn:  identity != nil,
	}
	if identity != nil {
		data.LogInOutURL = b.AuthService.LogoutURL("/view/" + b.StartPage)
	} else {
		data.LogInOutURL = b.AuthService.LoginURL(r.URL.RequestURI())
	}
	return data
}

func (b *Base) render(w http.ResponseWriter, r *http.Request, status int, name string, data viewmodels.PageData) {
	tmpl, ok := b.Templates[name]
	if !ok {
		zerolog.Ctx(r.Context()).Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("rendering template")
	}
}
