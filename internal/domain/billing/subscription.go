package billing

import (
	"math"
	"time"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusNone, StatusTrialing, StatusActive, StatusExpired, StatusCancelled}

// DateLayout is the layout of DailyResetOn: the UTC calendar day the free
// counter belongs to.
const DateLayout = "2006-01-02"

// StoreSubscription is the entitlement ledger row, one per store.
//
// A store without a row behaves exactly like Default(storeID): status none,
// every pool zero. Rows are only ever transitioned, never deleted.
type StoreSubscription struct {
	StoreID               string     `gorm:"type:varchar(36);primaryKey" json:"store_id"`
	Plan                  string     `gorm:"not null;default:''" json:"plan"`
	Status                Status     `gorm:"type:varchar(20);not null;default:'none'" json:"status"`
	TrialEndsAt           *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionPeriodEnd *time.Time `json:"subscription_period_end,omitempty"`

	SubscriptionCredits int64  `gorm:"not null;default:0;check:subscription_credits >= 0" json:"subscription_credits"`
	TopupCredits        int64  `gorm:"not null;default:0;check:topup_credits >= 0" json:"topup_credits"`
	TotalCreditsUsed    int64  `gorm:"not null;default:0" json:"total_credits_used"`
	DailyFreeUsed       int64  `gorm:"not null;default:0;check:daily_free_used >= 0" json:"daily_free_used"`
	DailyResetOn        string `gorm:"type:varchar(10);not null;default:''" json:"daily_reset_on"`

	StripeCustomerID     *string `gorm:"column:stripe_customer_id;index" json:"-"`
	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;index" json:"-"`

	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func Default(storeID string) StoreSubscription {
	return StoreSubscription{StoreID: storeID, Status: StatusNone}
}

// Day formats t as the UTC calendar day marker.
func Day(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FreeUsedOn is the free counter as seen on the day of now: a counter stamped
// with an earlier day reads as zero.
func (s StoreSubscription) FreeUsedOn(now time.Time) int64 {
	if s.DailyResetOn < Day(now) {
		return 0
	}
	return s.DailyFreeUsed
}

// TrialExpired reports whether a trialing row has passed its deadline.
func (s StoreSubscription) TrialExpired(now time.Time) bool {
	return s.Status == StatusTrialing && s.TrialEndsAt != nil && !now.Before(*s.TrialEndsAt)
}

// TrialDaysRemaining is max(0, ceil((trialEndsAt - now) / 1 day)).
func (s StoreSubscription) TrialDaysRemaining(now time.Time) int {
	if s.TrialEndsAt == nil {
		return 0
	}
	left := s.TrialEndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// CanDrawSubscriptionCredits: subscription credits only back a live subscription.
func (s Status) CanDrawSubscriptionCredits() bool {
	return s == StatusTrialing || s == StatusActive
}

// allowedFrom lists, per target status, the statuses a row may move from.
// expired and cancelled are terminal; reinstatement is an admin action
// outside this package.
var allowedFrom = map[Status][]Status{
	StatusTrialing:  {StatusNone},
	StatusActive:    {StatusNone, StatusTrialing, StatusActive},
	StatusExpired:   {StatusTrialing, StatusActive},
	StatusCancelled: {StatusActive},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}
