package plans

type Kind string

const (
	KindSubscription Kind = "subscription"
	KindTopup        Kind = "topup"
)

type Plan struct {
	ID            uint `gorm:"primaryKey"`
	Name          string
	PriceEUR      float64
	StripePriceID string `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id"`
	Interval      string
	Tier          string `gorm:"column:tier"` // "essential" | "professional" | "advanced"
	Kind          Kind   `gorm:"type:varchar(20);not null;default:'subscription'"`
	Credits       int64  `gorm:"not null;default:0"` // per billing period, or per pack for top-ups
}
