package controller

import (
	"errors"
	"net/http"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"camelwiki/internal/auth"
)

// Auth provides auth handlers
type Auth struct {
	Base
}

// Register registers the auth routes
func (a *Auth) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", a.loginGet)
	mux.HandleFunc("POST /login", a.loginPost)
	mux.HandleFunc("GET /logout", a.logout)
	mux.HandleFunc("GET /register", a.registerGet)
	mux.HandleFunc("POST /register", a.registerPost)
}

func returnPath(r *http.Request) string {
	return auth.SafeReturnPath(r.FormValue("return"))
}

func (a *Auth) loginGet(w http.ResponseWriter, r *http.Request) {
	data := a.pageData(r)
	data.Title = "Log in"
	data.ReturnPath = returnPath(r)
	a.render(w, r, http.StatusOK, "login.html", data)
}

func (a *Auth) loginPost(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	target := returnPath(r)

	_, err := a.AuthService.Login(w, r, username, password)
	if err != nil {
		status := http.StatusUnauthorized
		message := "Invalid username or password."
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("login failed")
			status = http.StatusInternalServerError
			message = "Login failed, please try again."
		}
		data := a.pageData(r)
		data.Title = "Log in"
		data.ReturnPath = target
		data.Username = username
		data.Error = message
		a.render(w, r, status, "login.html", data)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *Auth) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.AuthService.Logout(w, r); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("logout failed")
	}
	http.Redirect(w, r, returnPath(r), http.StatusFound)
}

func (a *Auth) registerGet(w http.ResponseWriter, r *http.Request) {
	data := a.pageData(r)
	data.Title = "Register"
	data.ReturnPath = returnPath(r)
	a.render(w, r, http.StatusOK, "register.html", data)
}

func (a *Auth) registerPost(w http.ResponseWriter, r *http.Request) {
	reg := auth.Registration{
		Username:    r.FormValue("username"),
		DisplayName: r.FormValue("display_name"),
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password"),
	}
	target := returnPath(r)

	_, err := a.AuthService.RegisterUser(r.Context(), reg)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Registration failed, please try again."
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			status, message = http.StatusBadRequest, verrs.Error()
		case errors.Is(err, auth.ErrAccountExists):
			status, message = http.StatusConflict, "That username is already taken."
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("registration failed")
		}
		data := a.pageData(r)
		data.Title = "Register"
		data.ReturnPath = target
		data.Username = reg.Username
		data.DisplayName = reg.DisplayName
		data.Email = reg.Email
		data.Error = message
		a.render(w, r, status, "register.html", data)
		return
	}
	http.Redirect(w, r, "/login?return="+url.QueryEscape(target), http.StatusFound)
}
