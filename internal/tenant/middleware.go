package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithSlug stores the resolved tenant slug in ctx.
func WithSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, ctxKey{}, slug)
}

// FromContext returns the tenant slug resolved for the request, if any.
func FromContext(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(ctxKey{}).(string)
	return slug, ok && slug != ""
}

// FromGin is FromContext for gin handlers.
func FromGin(c *gin.Context) (string, bool) {
	return FromContext(c.Request.Context())
}

// Middleware resolves the tenant before routing. On a tenant host the root
// path is rewritten to /s/{slug} and /admin is redirected to the root.
// It wraps the router because gin matches routes before its middleware runs.
func Middleware(res *Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug, ok := res.Resolve(r.Host)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			path := r.URL.Path
			if path == "/admin" || strings.HasPrefix(path, "/admin/") {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			r = r.WithContext(WithSlug(r.Context(), slug))
			if path == "/" || path == "" {
				rewritten := "/s/" + slug
				logger.Debug("tenant rewrite", zap.String("host", r.Host), zap.String("to", rewritten))
				r.URL.Path = rewritten
				r.URL.RawPath = ""
			}
			next.ServeHTTP(w, r)
		})
	}
}
