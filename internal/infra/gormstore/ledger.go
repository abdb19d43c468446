package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/billing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict means a compare-and-swap on the version column lost.
var ErrVersionConflict = errors.New("ledger row changed concurrently")

// ErrDuplicateRequest means another writer recorded the same request id first.
var ErrDuplicateRequest = errors.New("request id already recorded")

// Ledger is the gorm-backed entitlement ledger. Every balance mutation is one
// guarded UPDATE whose RowsAffected decides success.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Ensure creates the default row for a store if none exists yet and returns
// the current row.
func (l *Ledger) Ensure(ctx context.Context, storeID string) (billing.StoreSubscription, error) {
	row := billing.Default(storeID)
	if err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "store_id"}}, DoNothing: true}).
		Create(&row).Error; err != nil {
		return billing.StoreSubscription{}, fmt.Errorf("ensure subscription row: %w", err)
	}
	return l.Get(ctx, storeID)
}

// Get returns the row, or the default row when the store has none.
func (l *Ledger) Get(ctx context.Context, storeID string) (billing.StoreSubscription, error) {
	var row billing.StoreSubscription
	err := l.db.WithContext(ctx).Where("store_id = ?", storeID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Default(storeID), nil
	}
	if err != nil {
		return billing.StoreSubscription{}, fmt.Errorf("load subscription row: %w", err)
	}
	return row, nil
}

// ExpireTrial moves a trialing row to expired. It reports whether this call
// performed the transition.
func (l *Ledger) ExpireTrial(ctx context.Context, storeID string, now time.Time) (bool, error) {
	res := l.db.WithContext(ctx).Exec(
		`UPDATE store_subscriptions
		 SET status = ?, version = version + 1, updated_at = ?
		 WHERE store_id = ? AND status = ?`,
		billing.StatusExpired, now, storeID, billing.StatusTrialing,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CompareAndSwap applies updates only if the row still carries version.
func (l *Ledger) CompareAndSwap(ctx context.Context, storeID string, version int64, updates map[string]any) error {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")

	res := l.db.WithContext(ctx).
		Model(&billing.StoreSubscription{}).
		Where("store_id = ? AND version = ?", storeID, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// AddTopup credits a top-up once per (store, reference). It reports false when
// the reference was already applied.
func (l *Ledger) AddTopup(ctx context.Context, storeID, reference string, credits int64, now time.Time) (bool, error) {
	applied := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase := billing.CreditPurchase{StoreID: storeID, Reference: reference, Credits: credits, CreatedAt: now}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "reference"}},
			DoNothing: true,
		}).Create(&purchase)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		upd := tx.Exec(
			`UPDATE store_subscriptions
			 SET topup_credits = topup_credits + ?, version = version + 1, updated_at = ?
			 WHERE store_id = ?`,
			credits, now, storeID,
		)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("no subscription row for store %s", storeID)
		}
		applied = true
		return nil
	})
	return applied, err
}

// FindConsumption returns the recorded outcome for a request id, or nil.
func (l *Ledger) FindConsumption(ctx context.Context, storeID, requestID string) (*billing.CreditConsumption, error) {
	var rec billing.CreditConsumption
	err := l.db.WithContext(ctx).
		Where("store_id = ? AND request_id = ?", storeID, requestID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DebitRequest describes one consumption attempt.
type DebitRequest struct {
	StoreID        string
	RequestID      string
	Amount         int64
	DailyFreeLimit int64
	Now            time.Time
}

// Debit draws Amount from the first pool that can cover all of it, in
// free -> subscription -> topup order, and appends the consumption record in
// the same transaction. When no pool can cover it a denied record is appended
// and nothing else changes. ErrDuplicateRequest means a concurrent call with
// the same request id won; the caller should replay that record.
func (l *Ledger) Debit(ctx context.Context, req DebitRequest) (billing.CreditConsumption, error) {
	rec := billing.CreditConsumption{
		StoreID:   req.StoreID,
		RequestID: req.RequestID,
		Outcome:   billing.OutcomeDenied,
		Amount:    req.Amount,
		CreatedAt: req.Now,
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pool := range billing.Pools {
			ok, err := debitPool(tx, pool, req)
			if err != nil {
				return fmt.Errorf("debit %s pool: %w", pool, err)
			}
			if ok {
				rec.Outcome = billing.OutcomeGranted
				rec.Pool = pool
				break
			}
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "request_id"}},
			DoNothing: true,
		}).Create(&rec)
		if res.Error != nil {
			return fmt.Errorf("append consumption record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateRequest
		}
		return nil
	})
	if err != nil {
		return billing.CreditConsumption{}, err
	}
	return rec, nil
}

// subscriptionDrawStatuses are the statuses whose subscription credits may be
// spent, as listed by billing.Status.CanDrawSubscriptionCredits.
var subscriptionDrawStatuses = func() []string {
	var out []string
	for _, s := range billing.Statuses {
		if s.CanDrawSubscriptionCredits() {
			out = append(out, string(s))
		}
	}
	return out
}()

func debitPool(tx *gorm.DB, pool billing.Pool, req DebitRequest) (bool, error) {
	var res *gorm.DB
	switch pool {
	case billing.PoolFree:
		today := billing.Day(req.Now)
		// The day rollover and the debit are one statement: a stale day stamp
		// resets the counter to the debited amount.
		res = tx.Exec(
			`UPDATE store_subscriptions
			 SET daily_free_used = CASE WHEN daily_reset_on < ? THEN ? ELSE daily_free_used + ? END,
			     daily_reset_on = ?,
			     total_credits_used = total_credits_used + ?,
			     version = version + 1,
			     updated_at = ?
			 WHERE store_id = ?
			   AND (CASE WHEN daily_reset_on < ? THEN ? ELSE daily_free_used + ? END) <= ?`,
			today, req.Amount, req.Amount,
			today,
			req.Amount,
			req.Now,
			req.StoreID,
			today, req.Amount, req.Amount, req.DailyFreeLimit,
		)
	case billing.PoolSubscription:
		res = tx.Exec(
			`UPDATE store_subscriptions
			 SET subscription_credits = subscription_credits - ?,
			     total_credits_used = total_credits_used + ?,
			     version = version + 1,
			     updated_at = ?
			 WHERE store_id = ? AND subscription_credits >= ? AND status IN ?
			   AND (status <> ? OR trial_ends_at IS NULL OR trial_ends_at > ?)`,
			req.Amount, req.Amount, req.Now, req.StoreID, req.Amount,
			subscriptionDrawStatuses,
			billing.StatusTrialing, req.Now,
		)
	case billing.PoolTopup:
		res = tx.Exec(
			`UPDATE store_subscriptions
			 SET topup_credits = topup_credits - ?,
			     total_credits_used = total_credits_used + ?,
			     version = version + 1,
			     updated_at = ?
			 WHERE store_id = ? AND topup_credits >= ?`,
			req.Amount, req.Amount, req.Now, req.StoreID, req.Amount,
		)
	default:
		return false, fmt.Errorf("unknown pool %q", pool)
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
