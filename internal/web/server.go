package web

import (
	"context"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"

	"camelwiki/internal/auth"
	"camelwiki/internal/cache"
	"camelwiki/internal/database"
	"camelwiki/internal/web/controller"
	"camelwiki/internal/wiki"
)

// Config holds the dependencies for the web server.
type Config struct {
	DB          *database.DB
	Cache       cache.Cache // nil when caching is off
	AuthService *auth.Service
	Wiki        wiki.Service
	Renderer    wiki.Renderer
	StartPage   string
	MetricsPath string // empty disables the metrics endpoint
	Logger      zerolog.Logger
}

// Server holds the dependencies for the web server.
type Server struct {
	cfg       Config
	templates map[string]*template.Template
	handler   http.Handler
}

// NewServer creates a new server with the given dependencies.
func NewServer(cfg Config) (*Server, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if cfg.StartPage == "" {
		cfg.StartPage = "StartPage"
	}

	s := &Server{cfg: cfg, templates: templates}
	s.handler = s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) healthChecks() map[string]controller.Pinger {
	checks := map[string]controller.Pinger{
		"database": controller.PingerFunc(func(ctx context.Context) error {
			return s.cfg.DB.PingContext(ctx)
		}),
	}
	if s.cfg.Cache != nil {
		checks["cache"] = s.cfg.Cache
	}
	return checks
}
