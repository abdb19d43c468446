package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/access"
	"storefront/internal/domain/billing"
	"storefront/internal/infra/gormstore"
	"storefront/internal/observability/metrics"

	"go.uber.org/zap"
)

const maxTransitionAttempts = 3

// Store is the durable ledger. *gormstore.Ledger implements it.
type Store interface {
	Ensure(ctx context.Context, storeID string) (billing.StoreSubscription, error)
	Get(ctx context.Context, storeID string) (billing.StoreSubscription, error)
	ExpireTrial(ctx context.Context, storeID string, now time.Time) (bool, error)
	CompareAndSwap(ctx context.Context, storeID string, version int64, updates map[string]any) error
	AddTopup(ctx context.Context, storeID, reference string, credits int64, now time.Time) (bool, error)
	FindConsumption(ctx context.Context, storeID, requestID string) (*billing.CreditConsumption, error)
	Debit(ctx context.Context, req gormstore.DebitRequest) (billing.CreditConsumption, error)
}

type Config struct {
	DailyFreeLimit int64
	TrialDays      int
	TrialCredits   int64
}

// Ledger owns the subscription lifecycle of every store.
type Ledger struct {
	store   Store
	cfg     Config
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Ledger)

// WithClock replaces time.Now; the ledger always works in UTC.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(store Store, cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

// StatusView is what the subscription endpoint reports for a store.
type StatusView struct {
	StoreID               string         `json:"store_id"`
	Plan                  string         `json:"plan"`
	Status                billing.Status `json:"status"`
	TrialEndsAt           *time.Time     `json:"trial_ends_at,omitempty"`
	TrialDaysRemaining    int            `json:"trial_days_remaining"`
	SubscriptionPeriodEnd *time.Time     `json:"subscription_period_end,omitempty"`
	SubscriptionCredits   int64          `json:"subscription_credits"`
	TopupCredits          int64          `json:"topup_credits"`
	DailyFreeLimit        int64          `json:"daily_free_limit"`
	DailyFreeRemaining    int64          `json:"daily_free_remaining"`
	TotalCreditsUsed      int64          `json:"total_credits_used"`
	Access                access.Policy  `json:"access"`
}

// Status reads the store's ledger row, creating the default row on first use
// and persisting a trial expiry that is due.
func (l *Ledger) Status(ctx context.Context, storeID string) (StatusView, error) {
	if storeID == "" {
		return StatusView{}, ErrMissingStoreID
	}
	row, err := l.load(ctx, storeID)
	if err != nil {
		return StatusView{}, err
	}
	return l.view(row, l.clock()), nil
}

func (l *Ledger) load(ctx context.Context, storeID string) (billing.StoreSubscription, error) {
	row, err := l.store.Ensure(ctx, storeID)
	if err != nil {
		return billing.StoreSubscription{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return l.expireIfDue(ctx, row, l.clock())
}

func (l *Ledger) expireIfDue(ctx context.Context, row billing.StoreSubscription, now time.Time) (billing.StoreSubscription, error) {
	if !row.TrialExpired(now) {
		return row, nil
	}
	changed, err := l.store.ExpireTrial(ctx, row.StoreID, now)
	if err != nil {
		return billing.StoreSubscription{}, fmt.Errorf("%w: expire trial: %v", ErrLedgerUnavailable, err)
	}
	if changed {
		l.log.Info("trial expired", zap.String("store_id", row.StoreID))
	}
	row, err = l.store.Get(ctx, row.StoreID)
	if err != nil {
		return billing.StoreSubscription{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return row, nil
}

func (l *Ledger) view(row billing.StoreSubscription, now time.Time) StatusView {
	remaining := l.cfg.DailyFreeLimit - row.FreeUsedOn(now)
	if remaining < 0 {
		remaining = 0
	}
	return StatusView{
		StoreID:               row.StoreID,
		Plan:                  row.Plan,
		Status:                row.Status,
		TrialEndsAt:           row.TrialEndsAt,
		TrialDaysRemaining:    row.TrialDaysRemaining(now),
		SubscriptionPeriodEnd: row.SubscriptionPeriodEnd,
		SubscriptionCredits:   row.SubscriptionCredits,
		TopupCredits:          row.TopupCredits,
		DailyFreeLimit:        l.cfg.DailyFreeLimit,
		DailyFreeRemaining:    remaining,
		TotalCreditsUsed:      row.TotalCreditsUsed,
		Access:                access.ComputePolicy(now, row),
	}
}

// StartTrial moves a store with no subscription into its trial and grants the
// trial credits.
func (l *Ledger) StartTrial(ctx context.Context, storeID, plan string) (StatusView, error) {
	row, err := l.transition(ctx, storeID, billing.StatusTrialing, func(_ billing.StoreSubscription, now time.Time) map[string]any {
		ends := now.Add(time.Duration(l.cfg.TrialDays) * 24 * time.Hour)
		return map[string]any{
			"plan":                 strings.ToLower(strings.TrimSpace(plan)),
			"trial_ends_at":        ends,
			"subscription_credits": l.cfg.TrialCredits,
		}
	})
	if err != nil {
		return StatusView{}, err
	}
	return l.view(row, l.clock()), nil
}

type ActivateParams struct {
	Plan                 string
	PeriodEnd            time.Time
	Credits              int64
	StripeCustomerID     string
	StripeSubscriptionID string
}

// Activate records a paid subscription. Subscription credits are refilled when
// the store becomes active or when PeriodEnd moves past the stored period end,
// so a redelivered event for the same period does not grant twice.
func (l *Ledger) Activate(ctx context.Context, storeID string, p ActivateParams) (StatusView, error) {
	row, err := l.transition(ctx, storeID, billing.StatusActive, func(cur billing.StoreSubscription, _ time.Time) map[string]any {
		vals := map[string]any{}
		if p.Plan != "" {
			vals["plan"] = strings.ToLower(p.Plan)
		}
		if !p.PeriodEnd.IsZero() {
			vals["subscription_period_end"] = p.PeriodEnd.UTC()
		}
		if p.StripeCustomerID != "" {
			vals["stripe_customer_id"] = p.StripeCustomerID
		}
		if p.StripeSubscriptionID != "" {
			vals["stripe_subscription_id"] = p.StripeSubscriptionID
		}
		if renews(cur, p.PeriodEnd) {
			vals["subscription_credits"] = p.Credits
		}
		return vals
	})
	if err != nil {
		return StatusView{}, err
	}
	return l.view(row, l.clock()), nil
}

func renews(cur billing.StoreSubscription, periodEnd time.Time) bool {
	if cur.Status != billing.StatusActive {
		return true
	}
	if periodEnd.IsZero() {
		return false
	}
	return cur.SubscriptionPeriodEnd == nil || periodEnd.After(*cur.SubscriptionPeriodEnd)
}

func (l *Ledger) Expire(ctx context.Context, storeID string) (StatusView, error) {
	row, err := l.transition(ctx, storeID, billing.StatusExpired, nil)
	if err != nil {
		return StatusView{}, err
	}
	return l.view(row, l.clock()), nil
}

func (l *Ledger) Cancel(ctx context.Context, storeID string) (StatusView, error) {
	row, err := l.transition(ctx, storeID, billing.StatusCancelled, nil)
	if err != nil {
		return StatusView{}, err
	}
	return l.view(row, l.clock()), nil
}

// AddTopup grants purchased credits once per payment reference. It reports
// whether this call applied the grant.
func (l *Ledger) AddTopup(ctx context.Context, storeID, reference string, credits int64) (bool, error) {
	switch {
	case storeID == "":
		return false, ErrMissingStoreID
	case strings.TrimSpace(reference) == "":
		return false, ErrMissingReference
	case credits < 1:
		return false, ErrInvalidAmount
	}
	if _, err := l.store.Ensure(ctx, storeID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	applied, err := l.store.AddTopup(ctx, storeID, strings.TrimSpace(reference), credits, l.clock())
	if err != nil {
		return false, fmt.Errorf("add top-up: %w", err)
	}
	if applied {
		l.log.Info("top-up credited",
			zap.String("store_id", storeID),
			zap.String("reference", reference),
			zap.Int64("credits", credits))
	}
	return applied, nil
}

// transition moves the row to target with a version compare-and-swap,
// re-reading and retrying when a concurrent writer got there first.
// Re-applying the current status is a no-op except for active, where it is a
// renewal.
func (l *Ledger) transition(
	ctx context.Context,
	storeID string,
	target billing.Status,
	updates func(cur billing.StoreSubscription, now time.Time) map[string]any,
) (billing.StoreSubscription, error) {
	if storeID == "" {
		return billing.StoreSubscription{}, ErrMissingStoreID
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		row, err := l.load(ctx, storeID)
		if err != nil {
			return billing.StoreSubscription{}, err
		}
		if row.Status == target && target != billing.StatusActive {
			return row, nil
		}
		if !billing.CanTransition(row.Status, target) {
			return row, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, row.Status, target)
		}

		now := l.clock()
		vals := map[string]any{}
		if updates != nil {
			vals = updates(row, now)
		}
		vals["status"] = target
		vals["updated_at"] = now

		err = l.store.CompareAndSwap(ctx, storeID, row.Version, vals)
		if errors.Is(err, gormstore.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return billing.StoreSubscription{}, fmt.Errorf("transition to %s: %w", target, err)
		}

		l.log.Info("subscription transitioned",
			zap.String("store_id", storeID),
			zap.String("from", string(row.Status)),
			zap.String("to", string(target)))
		return l.store.Get(ctx, storeID)
	}
	return billing.StoreSubscription{}, ErrConcurrentUpdate
}
