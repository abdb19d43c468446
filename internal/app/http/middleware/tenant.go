package middleware

import (
	"context"
	"net/http"

	"storefront/internal/domain/tenant"

	"github.com/gin-gonic/gin"
)

// Resolver is satisfied by *tenancy.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, sig tenant.Signals) tenant.Context
}

// ResolveTenant attaches the request's tenant.Context to the request context.
// It never rejects a request; unknown stores resolve to root.
func ResolveTenant(r Resolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := tenant.Signals{
			Host: c.Request.Host,
			Path: c.Request.URL.Path,
		}
		if cookieName != "" {
			if v, err := c.Cookie(cookieName); err == nil {
				sig.HasCookie = true
				sig.CookieSlug = v
			}
		}

		tc := r.Resolve(c.Request.Context(), sig)
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))
		c.Next()
	}
}

// RequireStore answers 404 for requests that resolved to the root context.
func RequireStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := tenant.FromContext(c.Request.Context())
		if !ok || tc.IsRoot() {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Store not found"})
			return
		}
		c.Next()
	}
}
