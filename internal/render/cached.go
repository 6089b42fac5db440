package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"camelwiki/internal/cache"
	"camelwiki/internal/metrics"
)

// Cached memoises rendered HTML. Cache failures are logged and never fail a
// render.
type Cached struct {
	renderer *Renderer
	cache    cache.Cache
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewCached wraps r with c. A nil cache disables caching.
func NewCached(r *Renderer, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{
		renderer: r,
		cache:    c,
		ttl:      ttl,
		logger:   logger.With().Str("component", "render").Logger(),
	}
}

// Render returns the HTML of markup, from the cache when possible.
func (c *Cached) Render(ctx context.Context, markup string) (string, error) {
	if c.cache == nil || markup == "" {
		return c.renderer.Render(markup)
	}

	key := c.key(markup)
	html, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Msg("render cache read failed")
	}
	if ok {
		metrics.RecordCacheAccess(true)
		return html, nil
	}
	metrics.RecordCacheAccess(false)

	html, err = c.renderer.Render(markup)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, html, c.ttl); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Msg("render cache write failed")
	}
	return html, nil
}

// keyVersion changes whenever the HTML produced for the same markup changes,
// so entries written by older builds are never served.
const keyVersion = "v2"

func (c *Cached) key(markup string) string {
	sum := sha256.Sum256([]byte(string(c.renderer.format) + "\x00" + markup))
	return "render:" + keyVersion + ":" + hex.EncodeToString(sum[:])
}
