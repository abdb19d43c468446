package stripewebhooks

import (
	"context"
	"time"

	"storefront/internal/domain/plans"
	"storefront/internal/entitlement"
	"storefront/internal/infra/stripe"

	stripego "github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

func (h *Handler) handleSubscriptionUpdated(ctx context.Context, sub *stripego.Subscription) error {
	storeID := sub.Metadata["store_id"]
	if storeID == "" {
		return errMissingStore
	}

	action := stripe.ActionFor(sub.Status)
	h.log.Info("subscription updated",
		zap.String("store_id", storeID),
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)),
		zap.Stringer("action", action))

	var err error
	switch action {
	case stripe.ActionActivate:
		return h.activate(ctx, storeID, sub)
	case stripe.ActionExpire:
		_, err = h.ledger.Expire(ctx, storeID)
	case stripe.ActionCancel:
		_, err = h.ledger.Cancel(ctx, storeID)
	}
	return err
}

func activateParams(plan *plans.Plan, sub *stripego.Subscription) entitlement.ActivateParams {
	p := entitlement.ActivateParams{
		Plan:                 plans.PlanTier(plan),
		Credits:              plans.CreditsFor(plan),
		StripeSubscriptionID: sub.ID,
	}
	if sub.CurrentPeriodEnd > 0 {
		p.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Customer != nil {
		p.StripeCustomerID = sub.Customer.ID
	}
	return p
}
