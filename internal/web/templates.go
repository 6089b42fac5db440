package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"
)

//go:embed templates
var templateFiles embed.FS

// pageTemplates are the pages rendered inside layout.html.
var pageTemplates = []string{
	"view.html",
	"edit.html",
	"history.html",
	"diff.html",
	"login.html",
	"register.html",
}

// templateFuncs are available to every page. Titles may contain '?', '#'
// or '%', so they go through pathEscape before landing in a URL path.
var templateFuncs = template.FuncMap{
	"pathEscape": url.PathEscape,
}

// LoadTemplates parses one isolated template set per page, each executed
// as "layout.html".
func LoadTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFiles, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}
