// Package render turns wiki markup into HTML. Wiki words (CamelCase tokens
// such as StartPage) become links to /view/<word> before conversion.
package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/yuin/goldmark"

	"camelwiki/internal/metrics"
)

// Format selects the markup language of page bodies.
type Format string

const (
	Markdown Format = "markdown"
	Org      Format = "org"
)

// Renderer converts markup to HTML. It holds no per-call state and is safe
// for concurrent use.
type Renderer struct {
	format Format
	md     goldmark.Markdown
}

// New creates a renderer for the given markup format.
func New(format Format) (*Renderer, error) {
	switch format {
	case Markdown:
		return &Renderer{format: format, md: newMarkdown()}, nil
	case Org:
		return &Renderer{format: format}, nil
	default:
		return nil, fmt.Errorf("unknown markup format %q", format)
	}
}

// Format returns the markup format the renderer was built for.
func (r *Renderer) Format() Format {
	return r.format
}

// Render converts markup to HTML. Empty input renders to empty output.
func (r *Renderer) Render(markup string) (string, error) {
	if markup == "" {
		return "", nil
	}

	start := time.Now()
	defer func() {
		metrics.RenderDuration.WithLabelValues(string(r.format)).Observe(time.Since(start).Seconds())
	}()

	if r.format == Org {
		out, err := renderOrg(markup)
		if err != nil {
			return "", fmt.Errorf("converting org-mode content to HTML: %w", err)
		}
		return out, nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markup), &buf); err != nil {
		return "", fmt.Errorf("converting markdown content to HTML: %w", err)
	}
	return buf.String(), nil
}
