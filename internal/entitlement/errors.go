package entitlement

import "errors"

var (
	ErrInvalidAmount     = errors.New("entitlement: amount must be at least 1")
	ErrMissingRequestID  = errors.New("entitlement: request id is required")
	ErrMissingStoreID    = errors.New("entitlement: store id is required")
	ErrMissingReference  = errors.New("entitlement: top-up reference is required")
	ErrInvalidTransition = errors.New("entitlement: invalid subscription transition")
	ErrConcurrentUpdate  = errors.New("entitlement: subscription row kept changing")

	// ErrInsufficientCredit is the error form of a denied consumption. It is
	// not retryable until a balance changes.
	ErrInsufficientCredit = errors.New("entitlement: insufficient credit")

	// ErrLedgerUnavailable wraps failures to read the ledger. The caller must
	// not treat them as a zero balance.
	ErrLedgerUnavailable = errors.New("entitlement: ledger unavailable")

	// ErrLedgerWriteFailed means the debit failed twice on transport errors.
	ErrLedgerWriteFailed = errors.New("entitlement: ledger write failed")
)

// ReasonInsufficientCredit is the deny reason carried by ConsumeResult.
const ReasonInsufficientCredit = "insufficient_credit"
