package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain/billing"
	"storefront/internal/infra/gormstore"

	"go.uber.org/zap"
)

// ConsumeResult is the outcome of one Consume call. A denial is a result, not
// an error.
type ConsumeResult struct {
	Granted   bool         `json:"granted"`
	Pool      billing.Pool `json:"pool,omitempty"`
	Amount    int64        `json:"amount"`
	RequestID string       `json:"request_id"`
	Reason    string       `json:"reason,omitempty"`
	Replayed  bool         `json:"replayed"`
}

// Err returns ErrInsufficientCredit for a denial and nil for a grant.
func (r ConsumeResult) Err() error {
	if r.Granted {
		return nil
	}
	return ErrInsufficientCredit
}

func resultFrom(rec billing.CreditConsumption, replayed bool) ConsumeResult {
	res := ConsumeResult{
		Granted:   rec.Outcome == billing.OutcomeGranted,
		Pool:      rec.Pool,
		Amount:    rec.Amount,
		RequestID: rec.RequestID,
		Replayed:  replayed,
	}
	if !res.Granted {
		res.Reason = ReasonInsufficientCredit
	}
	return res
}

// Coordinator meters AI invocations against a store's credit pools.
type Coordinator struct {
	ledger *Ledger
}

func NewCoordinator(ledger *Ledger) *Coordinator {
	return &Coordinator{ledger: ledger}
}

// Consume debits amount from the first pool able to cover all of it, in
// free, subscription, topup order. The same (storeID, requestID) always
// yields the first recorded outcome and debits at most once.
func (c *Coordinator) Consume(ctx context.Context, storeID, requestID string, amount int64) (ConsumeResult, error) {
	requestID = strings.TrimSpace(requestID)
	switch {
	case storeID == "":
		return ConsumeResult{}, ErrMissingStoreID
	case requestID == "":
		return ConsumeResult{}, ErrMissingRequestID
	case amount < 1:
		return ConsumeResult{}, ErrInvalidAmount
	}

	l := c.ledger
	prev, err := l.store.FindConsumption(ctx, storeID, requestID)
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if prev != nil {
		return c.observe(resultFrom(*prev, true)), nil
	}

	// Creates the row if needed and settles a due trial expiry, so the
	// subscription pool guard sees the current status.
	if _, err := l.load(ctx, storeID); err != nil {
		return ConsumeResult{}, err
	}

	rec, replayed, err := c.debit(ctx, gormstore.DebitRequest{
		StoreID:        storeID,
		RequestID:      requestID,
		Amount:         amount,
		DailyFreeLimit: l.cfg.DailyFreeLimit,
		Now:            l.clock(),
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	return c.observe(resultFrom(rec, replayed)), nil
}

// debit runs the ledger debit, retrying a transport failure exactly once with
// the same request id.
func (c *Coordinator) debit(ctx context.Context, req gormstore.DebitRequest) (billing.CreditConsumption, bool, error) {
	l := c.ledger
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		rec, err := l.store.Debit(ctx, req)
		if err == nil {
			return rec, false, nil
		}
		if errors.Is(err, gormstore.ErrDuplicateRequest) {
			return c.replay(ctx, req, err)
		}
		if ctx.Err() != nil {
			return billing.CreditConsumption{}, false, fmt.Errorf("%w: %v", ErrLedgerWriteFailed, ctx.Err())
		}
		lastErr = err

		if attempt == 1 {
			l.log.Warn("ledger debit failed, retrying once",
				zap.String("store_id", req.StoreID),
				zap.String("request_id", req.RequestID),
				zap.Error(err))
			l.metrics.IncLedgerRetry()

			// The failed attempt may have committed before its reply was lost.
			if prev, ferr := l.store.FindConsumption(ctx, req.StoreID, req.RequestID); ferr == nil && prev != nil {
				return *prev, true, nil
			}
		}
	}
	return billing.CreditConsumption{}, false, fmt.Errorf("%w: %v", ErrLedgerWriteFailed, lastErr)
}

func (c *Coordinator) replay(ctx context.Context, req gormstore.DebitRequest, cause error) (billing.CreditConsumption, bool, error) {
	winner, err := c.ledger.store.FindConsumption(ctx, req.StoreID, req.RequestID)
	if err != nil {
		return billing.CreditConsumption{}, false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if winner == nil {
		return billing.CreditConsumption{}, false, fmt.Errorf("%w: %v", ErrLedgerWriteFailed, cause)
	}
	return *winner, true, nil
}

func (c *Coordinator) observe(res ConsumeResult) ConsumeResult {
	result := "denied"
	switch {
	case res.Replayed:
		result = "replayed"
	case res.Granted:
		result = "granted"
	}
	c.ledger.metrics.ObserveConsumption(result, string(res.Pool))
	return res
}
