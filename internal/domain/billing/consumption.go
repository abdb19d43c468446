package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Pool string

const (
	PoolFree         Pool = "free"
	PoolSubscription Pool = "subscription"
	PoolTopup        Pool = "topup"
)

// Pools in draw order.
var Pools = []Pool{PoolFree, PoolSubscription, PoolTopup}

type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// CreditConsumption is an append-only log row. RequestID is the caller's
// idempotency key and is unique per store.
type CreditConsumption struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_credit_consumptions_store_request,priority:1" json:"store_id"`
	RequestID string    `gorm:"not null;uniqueIndex:ux_credit_consumptions_store_request,priority:2" json:"request_id"`
	Outcome   Outcome   `gorm:"type:varchar(10);not null" json:"outcome"`
	Pool      Pool      `gorm:"type:varchar(20);not null;default:''" json:"pool,omitempty"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (c *CreditConsumption) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
