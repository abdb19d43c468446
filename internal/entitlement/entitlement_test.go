package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/access"
	"storefront/internal/domain/billing"
	"storefront/internal/infra/gormstore"
	"storefront/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db     *gorm.DB
	store  *gormstore.Ledger
	ledger *Ledger
	coord  *Coordinator
	clock  *fakeClock
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	return newHarnessWithStore(t, db, gormstore.NewLedger(db), cfg)
}

func newHarnessWithStore(t *testing.T, db *gorm.DB, store Store, cfg Config) *harness {
	t.Helper()
	clock := &fakeClock{t: t0}
	ledger := NewLedger(store, cfg, WithClock(clock.Now))
	gs, _ := store.(*gormstore.Ledger)
	return &harness{db: db, store: gs, ledger: ledger, coord: NewCoordinator(ledger), clock: clock}
}

func (h *harness) seed(t *testing.T, storeID string, updates map[string]any) {
	t.Helper()
	require.NoError(t, h.db.Create(&billing.StoreSubscription{StoreID: storeID, Status: billing.StatusNone}).Error)
	if len(updates) > 0 {
		require.NoError(t, h.db.Model(&billing.StoreSubscription{}).Where("store_id = ?", storeID).Updates(updates).Error)
	}
}

func (h *harness) row(t *testing.T, storeID string) billing.StoreSubscription {
	t.Helper()
	var row billing.StoreSubscription
	require.NoError(t, h.db.Where("store_id = ?", storeID).First(&row).Error)
	return row
}

// The harness database has a single connection, so this exercises the
// coordinator's replay and pool order under contention. Guarded debits on
// separate connections are covered by gormstore's
// TestDebitNoOverdraftAcrossConnections.
func TestConsumeNoOverdraftUnderConcurrency(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 0})
	h.seed(t, "s1", map[string]any{
		"status": billing.StatusActive, "subscription_credits": 2, "topup_credits": 3,
	})

	const callers = 6
	results := make([]ConsumeResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.coord.Consume(context.Background(), "s1", fmt.Sprintf("req-%d", i), 1)
		}(i)
	}
	wg.Wait()

	granted, denied := 0, 0
	pools := map[billing.Pool]int{}
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Granted {
			granted++
			pools[results[i].Pool]++
		} else {
			denied++
			assert.Equal(t, ReasonInsufficientCredit, results[i].Reason)
		}
	}
	assert.Equal(t, 5, granted)
	assert.Equal(t, 1, denied)
	assert.Equal(t, map[billing.Pool]int{billing.PoolSubscription: 2, billing.PoolTopup: 3}, pools)

	row := h.row(t, "s1")
	assert.Zero(t, row.SubscriptionCredits)
	assert.Zero(t, row.TopupCredits)
	assert.Equal(t, int64(5), row.TotalCreditsUsed)
}

func TestConsumePoolPrecedence(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 1})
	h.seed(t, "s1", map[string]any{
		"status": billing.StatusActive, "subscription_credits": 1, "topup_credits": 1,
	})

	var got []billing.Pool
	for i := 0; i < 3; i++ {
		res, err := h.coord.Consume(context.Background(), "s1", fmt.Sprintf("r%d", i), 1)
		require.NoError(t, err)
		require.True(t, res.Granted)
		got = append(got, res.Pool)
	}
	assert.Equal(t, []billing.Pool{billing.PoolFree, billing.PoolSubscription, billing.PoolTopup}, got)

	res, err := h.coord.Consume(context.Background(), "s1", "r3", 1)
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.ErrorIs(t, res.Err(), ErrInsufficientCredit)
}

func TestConsumeIdempotentRetry(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 0})
	h.seed(t, "s1", map[string]any{"topup_credits": 2})
	ctx := context.Background()

	first, err := h.coord.Consume(ctx, "s1", "req-1", 1)
	require.NoError(t, err)
	second, err := h.coord.Consume(ctx, "s1", "req-1", 1)
	require.NoError(t, err)

	assert.True(t, first.Granted)
	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	first.Replayed = true
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), h.row(t, "s1").TopupCredits)
}

func TestConsumeReplaysDenial(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 0})
	ctx := context.Background()

	res, err := h.coord.Consume(ctx, "s1", "req-1", 1)
	require.NoError(t, err)
	assert.False(t, res.Granted)

	_, err = h.ledger.AddTopup(ctx, "s1", "cs_1", 5)
	require.NoError(t, err)

	res, err = h.coord.Consume(ctx, "s1", "req-1", 1)
	require.NoError(t, err)
	assert.False(t, res.Granted, "a recorded request id keeps its first outcome")
	assert.True(t, res.Replayed)

	res, err = h.coord.Consume(ctx, "s1", "req-2", 1)
	require.NoError(t, err)
	assert.True(t, res.Granted)
}

func TestConsumeValidation(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.coord.Consume(ctx, "s1", "req", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.coord.Consume(ctx, "s1", "  ", 1)
	assert.ErrorIs(t, err, ErrMissingRequestID)
	_, err = h.coord.Consume(ctx, "", "req", 1)
	assert.ErrorIs(t, err, ErrMissingStoreID)
}

func TestConsumeNeverSplitsAcrossPools(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 1})
	h.seed(t, "s1", map[string]any{
		"status": billing.StatusActive, "subscription_credits": 1, "topup_credits": 1,
	})

	res, err := h.coord.Consume(context.Background(), "s1", "big", 3)
	require.NoError(t, err)
	assert.False(t, res.Granted)

	row := h.row(t, "s1")
	assert.Equal(t, int64(1), row.SubscriptionCredits)
	assert.Equal(t, int64(1), row.TopupCredits)
	assert.Zero(t, row.DailyFreeUsed)
}

func TestDailyFreeResetsAtUTCMidnight(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 1})
	ctx := context.Background()
	h.clock.Set(time.Date(2026, 4, 1, 23, 59, 0, 0, time.UTC))

	res, err := h.coord.Consume(ctx, "s1", "a", 1)
	require.NoError(t, err)
	assert.Equal(t, billing.PoolFree, res.Pool)

	h.clock.Advance(59 * time.Second)
	res, err = h.coord.Consume(ctx, "s1", "b", 1)
	require.NoError(t, err)
	assert.False(t, res.Granted)

	view, err := h.ledger.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, view.DailyFreeRemaining)

	h.clock.Advance(time.Second)
	view, err = h.ledger.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.DailyFreeRemaining)

	res, err = h.coord.Consume(ctx, "s1", "c", 1)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, billing.PoolFree, res.Pool)
	assert.Equal(t, "2026-04-02", h.row(t, "s1").DailyResetOn)
}

func TestStatusDefaultsForUnknownStore(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 3})

	view, err := h.ledger.Status(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusNone, view.Status)
	assert.Zero(t, view.SubscriptionCredits)
	assert.Zero(t, view.TopupCredits)
	assert.Equal(t, int64(3), view.DailyFreeRemaining)
	assert.Equal(t, access.AccessLocked, view.Access.State)

	// the row now exists
	assert.Equal(t, billing.StatusNone, h.row(t, "fresh").Status)
}

func TestTrialLifecycle(t *testing.T) {
	h := newHarness(t, Config{TrialDays: 7, TrialCredits: 10})
	ctx := context.Background()

	view, err := h.ledger.StartTrial(ctx, "s1", "Professional")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusTrialing, view.Status)
	assert.Equal(t, 7, view.TrialDaysRemaining)
	assert.Equal(t, int64(10), view.SubscriptionCredits)
	assert.Equal(t, "professional", view.Plan)

	h.clock.Advance(time.Hour)
	view, err = h.ledger.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, view.TrialDaysRemaining)

	h.clock.Advance(6 * 24 * time.Hour)
	view, err = h.ledger.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.TrialDaysRemaining)

	_, err = h.ledger.StartTrial(ctx, "s1", "professional")
	require.NoError(t, err, "re-applying the current status is a no-op")
}

func TestTrialExpiryIsPersistedAndIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	ended := t0.Add(-time.Second)
	h.seed(t, "s1", map[string]any{
		"status": billing.StatusTrialing, "trial_ends_at": ended, "subscription_credits": 4,
	})

	view, err := h.ledger.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusExpired, view.Status)
	assert.Zero(t, view.TrialDaysRemaining)

	row := h.row(t, "s1")
	assert.Equal(t, billing.StatusExpired, row.Status)

	again, err := h.ledger.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusExpired, again.Status)
	assert.Equal(t, row.Version, h.row(t, "s1").Version)
}

func TestExpiredTrialCreditsAreNotDrawn(t *testing.T) {
	h := newHarness(t, Config{DailyFreeLimit: 0})
	h.seed(t, "s1", map[string]any{
		"status": billing.StatusTrialing, "trial_ends_at": t0.Add(-time.Minute), "subscription_credits": 4,
	})

	res, err := h.coord.Consume(context.Background(), "s1", "r1", 1)
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, int64(4), h.row(t, "s1").SubscriptionCredits)
}

func TestActivateAndRenew(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	period1 := t0.Add(30 * 24 * time.Hour)

	view, err := h.ledger.Activate(ctx, "s1", ActivateParams{
		Plan: "essential", PeriodEnd: period1, Credits: 50, StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1",
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, view.Status)
	assert.Equal(t, int64(50), view.SubscriptionCredits)

	_, err = h.coord.Consume(ctx, "s1", "r1", 1)
	require.NoError(t, err)
	_, err = h.coord.Consume(ctx, "s1", "r2", 1)
	require.NoError(t, err)
	_, err = h.coord.Consume(ctx, "s1", "r3", 1)
	require.NoError(t, err)
	_, err = h.coord.Consume(ctx, "s1", "r4", 1)
	require.NoError(t, err)

	// redelivery of the same period keeps the balance
	view, err = h.ledger.Activate(ctx, "s1", ActivateParams{Plan: "essential", PeriodEnd: period1, Credits: 50})
	require.NoError(t, err)
	assert.Less(t, view.SubscriptionCredits, int64(50))

	view, err = h.ledger.Activate(ctx, "s1", ActivateParams{Plan: "essential", PeriodEnd: period1.Add(30 * 24 * time.Hour), Credits: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(50), view.SubscriptionCredits)

	row := h.row(t, "s1")
	require.NotNil(t, row.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *row.StripeSubscriptionID)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	h := newHarness(t, Config{TrialDays: 7})
	ctx := context.Background()

	_, err := h.ledger.Cancel(ctx, "s1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.ledger.Activate(ctx, "s1", ActivateParams{Plan: "advanced", Credits: 600})
	require.NoError(t, err)
	view, err := h.ledger.Cancel(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, view.Status)

	_, err = h.ledger.Cancel(ctx, "s1")
	assert.NoError(t, err)

	_, err = h.ledger.StartTrial(ctx, "s1", "essential")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.ledger.Activate(ctx, "s1", ActivateParams{Plan: "advanced"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.ledger.Expire(ctx, "s1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAddTopupIdempotentPerReference(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	applied, err := h.ledger.AddTopup(ctx, "s1", "cs_42", 25)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = h.ledger.AddTopup(ctx, "s1", "cs_42", 25)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(25), h.row(t, "s1").TopupCredits)

	_, err = h.ledger.AddTopup(ctx, "s1", "", 5)
	assert.ErrorIs(t, err, ErrMissingReference)
	_, err = h.ledger.AddTopup(ctx, "s1", "cs_43", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// flakyStore fails Debit a set number of times. When commitFirst is set the
// first failing call still commits, as if only the reply was lost.
type flakyStore struct {
	*gormstore.Ledger
	mu          sync.Mutex
	failures    int
	commitFirst bool
	calls       int
}

func (f *flakyStore) Debit(ctx context.Context, req gormstore.DebitRequest) (billing.CreditConsumption, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		if call == 1 && f.commitFirst {
			_, _ = f.Ledger.Debit(ctx, req)
		}
		return billing.CreditConsumption{}, errors.New("connection reset by peer")
	}
	return f.Ledger.Debit(ctx, req)
}

func newFlakyHarness(t *testing.T, flaky *flakyStore) *harness {
	base := newHarness(t, Config{DailyFreeLimit: 0})
	flaky.Ledger = base.store
	h := newHarnessWithStore(t, base.db, flaky, Config{DailyFreeLimit: 0})
	h.store = base.store
	return h
}

func TestConsumeRetriesTransportFailureOnce(t *testing.T) {
	flaky := &flakyStore{failures: 1}
	h := newFlakyHarness(t, flaky)
	h.seed(t, "s1", map[string]any{"topup_credits": 2})

	res, err := h.coord.Consume(context.Background(), "s1", "req-1", 1)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, 2, flaky.calls)
	assert.Equal(t, int64(1), h.row(t, "s1").TopupCredits)
}

func TestConsumeRetryAfterLostReplyDoesNotDoubleCharge(t *testing.T) {
	flaky := &flakyStore{failures: 1, commitFirst: true}
	h := newFlakyHarness(t, flaky)
	h.seed(t, "s1", map[string]any{"topup_credits": 2})

	res, err := h.coord.Consume(context.Background(), "s1", "req-1", 1)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, int64(1), h.row(t, "s1").TopupCredits)
}

func TestConsumeGivesUpAfterSecondFailure(t *testing.T) {
	flaky := &flakyStore{failures: 2}
	h := newFlakyHarness(t, flaky)
	h.seed(t, "s1", map[string]any{"topup_credits": 2})

	_, err := h.coord.Consume(context.Background(), "s1", "req-1", 1)
	assert.ErrorIs(t, err, ErrLedgerWriteFailed)
	assert.Equal(t, 2, flaky.calls)
	assert.Equal(t, int64(2), h.row(t, "s1").TopupCredits)
}
