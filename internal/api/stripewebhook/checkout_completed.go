package stripewebhooks

import (
	"context"
	"fmt"

	"storefront/internal/domain/plans"

	stripego "github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

func (h *Handler) handleCheckoutSessionCompleted(ctx context.Context, session *stripego.CheckoutSession) error {
	storeID := session.Metadata["store_id"]
	if storeID == "" {
		storeID = session.ClientReferenceID
	}
	if storeID == "" {
		return errMissingStore
	}

	if session.Mode == stripego.CheckoutSessionModeSubscription {
		if session.Subscription == nil || session.Subscription.ID == "" {
			return fmt.Errorf("%w: checkout session missing subscription", errMalformedEvent)
		}
		sub, err := h.subs.GetSubscription(ctx, session.Subscription.ID)
		if err != nil {
			return fmt.Errorf("fetch subscription %s: %w", session.Subscription.ID, err)
		}
		return h.activate(ctx, storeID, sub)
	}

	// One-time top-up pack. Unpaid sessions (delayed methods) settle later.
	if session.PaymentStatus != stripego.CheckoutSessionPaymentStatusPaid {
		h.log.Info("checkout session not paid yet",
			zap.String("session_id", session.ID),
			zap.String("payment_status", string(session.PaymentStatus)))
		return nil
	}

	priceID := session.Metadata["price_id"]
	plan, err := h.plans.ByPriceID(ctx, priceID)
	if err != nil {
		return fmt.Errorf("plan for price_id=%s: %w", priceID, err)
	}
	if plan.Kind != plans.KindTopup {
		return fmt.Errorf("%w: price %s is not a top-up pack", errMalformedEvent, priceID)
	}

	// The session id is the payment reference, so a redelivery is a no-op.
	applied, err := h.ledger.AddTopup(ctx, storeID, session.ID, plans.CreditsFor(plan))
	if err != nil {
		return err
	}
	if !applied {
		h.log.Info("top-up already credited", zap.String("session_id", session.ID))
	}
	return nil
}

// activate maps a live Stripe subscription onto the store's ledger row.
func (h *Handler) activate(ctx context.Context, storeID string, sub *stripego.Subscription) error {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return fmt.Errorf("%w: subscription has no price", errMalformedEvent)
	}
	priceID := sub.Items.Data[0].Price.ID
	plan, err := h.plans.ByPriceID(ctx, priceID)
	if err != nil {
		return fmt.Errorf("plan for price_id=%s: %w", priceID, err)
	}

	if _, err := h.ledger.Activate(ctx, storeID, activateParams(plan, sub)); err != nil {
		return fmt.Errorf("activate store %s: %w", storeID, err)
	}
	return nil
}
