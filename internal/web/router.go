package web

import (
	"net/http"

	"camelwiki/internal/metrics"
	"camelwiki/internal/web/controller"
	"camelwiki/internal/web/middleware"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", StaticFileServer()))
	if s.cfg.MetricsPath != "" {
		mux.Handle("GET "+s.cfg.MetricsPath, metrics.Handler())
	}

	base := controller.Base{
		AuthService: s.cfg.AuthService,
		Templates:   s.templates,
		StartPage:   s.cfg.StartPage,
	}

	authController := controller.Auth{Base: base}
	authController.Register(mux)

	pageController := controller.Page{Base: base, Wiki: s.cfg.Wiki}
	pageController.Register(mux)

	miscController := controller.Misc{Renderer: s.cfg.Renderer, Checks: s.healthChecks()}
	miscController.Register(mux)

	var handler http.Handler = middleware.Metrics(mux)
	handler = middleware.WithIdentity(s.cfg.AuthService)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(s.cfg.Logger)(handler)
	return handler
}
