package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditPurchase records a top-up credit grant. Reference is the payment
// reference (checkout session id, admin grant id) and is unique per store, so
// a redelivered webhook never credits twice.
type CreditPurchase struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StoreID   string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_credit_purchases_store_reference,priority:1" json:"store_id"`
	Reference string    `gorm:"not null;uniqueIndex:ux_credit_purchases_store_reference,priority:2" json:"reference"`
	Credits   int64     `gorm:"not null" json:"credits"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (p *CreditPurchase) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
