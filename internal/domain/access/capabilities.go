package access

import "storefront/internal/domain/plans"

func CapabilitiesFor(state AccessState, tier string) []string {
	if state == AccessLocked {
		return []string{}
	}
	if state == AccessLimited {
		return []string{"storefront"}
	}

	if state == AccessTrial {
		return []string{"storefront", "tryon"}
	}

	switch tier {
	case plans.TierProfessional:
		return []string{"storefront", "tryon", "custom_domain"}
	case plans.TierAdvanced:
		return []string{"storefront", "tryon", "custom_domain", "casting"}
	default:
		return []string{"storefront", "tryon"}
	}
}
