package middleware

import (
	"net/http"

	"camelwiki/internal/auth"
)

// WithIdentity returns a middleware that puts the signed-in identity, if
// any, into the request context.
func WithIdentity(authService *auth.Service) func(http.Handler) http.Handler {
	return authService.WithIdentity
}
