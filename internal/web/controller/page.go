package controller

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"camelwiki/internal/auth"
	"camelwiki/internal/page"
	"camelwiki/internal/revision"
	"camelwiki/internal/web/viewmodels"
	"camelwiki/internal/wiki"
)

// maxBodyBytes bounds the size of a submitted page.
const maxBodyBytes = 1 << 20

// Page provides page handlers
type Page struct {
	Base
	Wiki wiki.Service
}

// Register registers the page routes
func (p *Page) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", p.home)
	mux.HandleFunc("GET /view/{title}", p.view)
	mux.HandleFunc("GET /edit/{title}", p.edit)
	mux.HandleFunc("POST /save/{title}", p.save)
	mux.HandleFunc("GET /history/{title}", p.history)
	mux.HandleFunc("GET /diff/{title}", p.diff)
}

func viewPath(title string) string {
	return "/view/" + url.PathEscape(title)
}

func (p *Page) home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, viewPath(p.StartPage), http.StatusFound)
}

func (p *Page) view(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	res, err := p.Wiki.View(r.Context(), title)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	data := p.pageData(r)
	data.Title = res.Title
	data.Exists = res.Exists
	data.Content = template.HTML(res.HTML)
	data.Author = res.Author
	data.AuthorEmail = res.AuthorEmail
	data.Version = res.Version
	data.VersionDate = res.VersionDate
	data.Versioned = p.Wiki.Variant() == wiki.VariantVersioned
	p.render(w, r, http.StatusOK, "view.html", data)
}

func (p *Page) edit(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	res, err := p.Wiki.Edit(r.Context(), title, auth.IdentityFromContext(r.Context()))
	if err != nil {
		p.fail(w, r, err)
		return
	}

	data := p.pageData(r)
	data.Title = res.Title
	data.Exists = res.Exists
	data.Body = res.Body
	data.Author = res.Author
	data.Version = res.Version
	data.Versioned = p.Wiki.Variant() == wiki.VariantVersioned
	p.render(w, r, http.StatusOK, "edit.html", data)
}

func (p *Page) save(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	in := wiki.SaveInput{
		Title:   title,
		Body:    r.PostFormValue("body"),
		Comment: r.PostFormValue("comment"),
	}
	err := p.Wiki.Save(r.Context(), in, auth.IdentityFromContext(r.Context()))
	if errors.Is(err, wiki.ErrAuthenticationRequired) {
		http.Redirect(w, r, p.AuthService.LoginURL("/edit/"+url.PathEscape(title)), http.StatusFound)
		return
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	http.Redirect(w, r, viewPath(title), http.StatusFound)
}

func (p *Page) history(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	revisions, err := p.Wiki.History(r.Context(), title)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	data := p.pageData(r)
	data.Title = title
	data.Exists = true
	data.Versioned = true
	data.Revisions = viewmodels.Revisions(revisions)
	p.render(w, r, http.StatusOK, "history.html", data)
}

func (p *Page) diff(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")

	from, err := strconv.Atoi(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "Invalid 'from' revision", http.StatusBadRequest)
		return
	}
	to, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "Invalid 'to' revision", http.StatusBadRequest)
		return
	}

	res, err := p.Wiki.Diff(r.Context(), title, from, to)
	if err != nil {
		p.fail(w, r, err)
		return
	}

	data := p.pageData(r)
	data.Title = title
	data.Exists = true
	data.Versioned = true
	data.From = res.From.VersionNumber
	data.To = res.To.VersionNumber
	data.Content = template.HTML(res.HTML)
	p.render(w, r, http.StatusOK, "diff.html", data)
}

// fail maps service errors to HTTP responses.
func (p *Page) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wiki.ErrAuthenticationRequired):
		http.Redirect(w, r, p.AuthService.LoginURL(r.URL.RequestURI()), http.StatusFound)
	case errors.Is(err, wiki.ErrInvalidTitle):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, page.ErrNotFound), errors.Is(err, wiki.ErrHistoryUnsupported):
		http.NotFound(w, r)
	case errors.Is(err, revision.ErrConflict):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "The page is being edited by someone else, please try again.", http.StatusServiceUnavailable)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
