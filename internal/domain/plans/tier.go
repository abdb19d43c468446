package plans

import "strings"

// Tier constants (single source of truth)
const (
	TierNone         = "none"
	TierEssential    = "essential"
	TierProfessional = "professional"
	TierAdvanced     = "advanced"
)

// Default AI credits granted per subscription period when a plan row does not
// carry an explicit Credits value.
var tierCredits = map[string]int64{
	TierEssential:    50,
	TierProfessional: 200,
	TierAdvanced:     600,
}

// PlanTier returns the effective tier for a plan.
// Priority:
// 1. Explicit Tier stored in DB
// 2. Fallback inference by price (legacy safety net)
func PlanTier(p *Plan) string {
	if p == nil {
		return TierNone
	}

	tier := strings.ToLower(strings.TrimSpace(p.Tier))
	switch tier {
	case TierEssential, TierProfessional, TierAdvanced:
		return tier
	}

	return inferTierFromPrice(p.PriceEUR)
}

// CreditsFor returns how many credits one period (or one pack) of the plan grants.
func CreditsFor(p *Plan) int64 {
	if p == nil {
		return 0
	}
	if p.Credits > 0 {
		return p.Credits
	}
	if p.Kind == KindTopup {
		return 0
	}
	return tierCredits[PlanTier(p)]
}

// inferTierFromPrice exists ONLY as a backward-compatibility fallback.
func inferTierFromPrice(priceEUR float64) string {
	switch {
	case priceEUR >= 320:
		return TierAdvanced
	case priceEUR >= 180:
		return TierProfessional
	default:
		return TierEssential
	}
}
