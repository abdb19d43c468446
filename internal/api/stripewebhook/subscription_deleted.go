package stripewebhooks

import (
	"context"

	stripego "github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

func (h *Handler) handleSubscriptionDeleted(ctx context.Context, sub *stripego.Subscription) error {
	storeID := sub.Metadata["store_id"]
	if storeID == "" {
		return errMissingStore
	}
	if _, err := h.ledger.Cancel(ctx, storeID); err != nil {
		return err
	}
	h.log.Info("subscription cancelled",
		zap.String("store_id", storeID),
		zap.String("subscription_id", sub.ID))
	return nil
}
