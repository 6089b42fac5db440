package controller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"camelwiki/internal/wiki"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Misc provides miscellaneous handlers
type Misc struct {
	Renderer wiki.Renderer
	Checks   map[string]Pinger
}

// Register registers the misc routes
func (m *Misc) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /_preview", m.preview)
	mux.HandleFunc("GET /healthz", m.healthz)
}

func (m *Misc) preview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	content, err := m.Renderer.Render(r.Context(), string(body))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("rendering preview")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, content)
}

func (m *Misc) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range m.Checks {
		if err := check.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("health check failed")
			http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}
