package access

import (
	"time"

	"storefront/internal/domain/billing"
)

// Effective access for UI/product: trial|full|limited|locked
func ComputeEffectiveAccessState(now time.Time, sub billing.StoreSubscription) AccessState {
	switch sub.Status {
	case billing.StatusTrialing:
		if sub.TrialExpired(now) {
			return AccessLocked
		}
		return AccessTrial

	case billing.StatusActive:
		return AccessFull

	case billing.StatusCancelled:
		// paid-through access until the period ends
		if sub.SubscriptionPeriodEnd != nil && now.Before(*sub.SubscriptionPeriodEnd) {
			return AccessLimited
		}
		return AccessLocked

	default:
		return AccessLocked
	}
}
