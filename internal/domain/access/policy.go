package access

import (
	"time"

	"storefront/internal/domain/billing"
	"storefront/internal/domain/plans"
)

type Policy struct {
	State        AccessState `json:"state"`
	Capabilities []string    `json:"capabilities"`
}

func ComputePolicy(now time.Time, sub billing.StoreSubscription) Policy {
	state := ComputeEffectiveAccessState(now, sub)
	return Policy{
		State:        state,
		Capabilities: CapabilitiesFor(state, plans.PlanTier(&plans.Plan{Tier: sub.Plan})),
	}
}

func (p Policy) Can(capability string) bool {
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
