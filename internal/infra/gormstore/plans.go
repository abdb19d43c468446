package gormstore

import (
	"context"
	"errors"

	"storefront/internal/domain/plans"

	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

type Plans struct {
	db *gorm.DB
}

func NewPlans(db *gorm.DB) *Plans {
	return &Plans{db: db}
}

func (r *Plans) ByPriceID(ctx context.Context, priceID string) (*plans.Plan, error) {
	var p plans.Plan
	err := r.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Plans) List(ctx context.Context) ([]plans.Plan, error) {
	var out []plans.Plan
	err := r.db.WithContext(ctx).Order("kind ASC, price_eur ASC").Find(&out).Error
	return out, err
}

// Upsert inserts p or refreshes the row with the same Stripe price id. It
// reports whether a new row was created.
func (r *Plans) Upsert(ctx context.Context, p *plans.Plan) (bool, error) {
	existing, err := r.ByPriceID(ctx, p.StripePriceID)
	if errors.Is(err, ErrPlanNotFound) {
		return true, r.db.WithContext(ctx).Create(p).Error
	}
	if err != nil {
		return false, err
	}

	p.ID = existing.ID
	err = r.db.WithContext(ctx).Model(existing).Select("name", "price_eur", "interval", "tier", "kind", "credits").Updates(p).Error
	return false, err
}
