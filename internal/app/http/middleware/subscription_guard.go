package middleware

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain/tenant"
	"storefront/internal/entitlement"

	"github.com/gin-gonic/gin"
)

// StatusReader is satisfied by *entitlement.Ledger.
type StatusReader interface {
	Status(ctx context.Context, storeID string) (entitlement.StatusView, error)
}

// RequireCapability rejects requests whose store's access policy lacks
// capability. Credits are metered separately.
func RequireCapability(ledger StatusReader, capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, _ := tenant.FromContext(c.Request.Context())
		view, err := ledger.Status(c.Request.Context(), tc.ID())
		if errors.Is(err, entitlement.ErrLedgerUnavailable) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Billing temporarily unavailable"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			return
		}

		if !view.Access.Can(capability) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":      "Your plan does not include this feature",
				"capability": capability,
				"state":      view.Access.State,
			})
			return
		}
		c.Next()
	}
}
