package stripe

import (
	"strings"

	stripego "github.com/stripe/stripe-go/v75"
)

// Action is what a Stripe subscription status means for the ledger.
type Action int

const (
	ActionIgnore Action = iota
	ActionActivate
	ActionExpire
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionActivate:
		return "activate"
	case ActionExpire:
		return "expire"
	case ActionCancel:
		return "cancel"
	default:
		return "ignore"
	}
}

// ActionFor maps a Stripe subscription status onto a ledger transition.
// Stripe's own trialing means a card is on file, so it activates. past_due
// leaves the row alone while Stripe retries the charge: expired is terminal,
// and a successful retry arrives as a later "active" update.
func ActionFor(status stripego.SubscriptionStatus) Action {
	switch stripego.SubscriptionStatus(strings.TrimSpace(string(status))) {
	case stripego.SubscriptionStatusActive, stripego.SubscriptionStatusTrialing:
		return ActionActivate
	case stripego.SubscriptionStatusUnpaid, stripego.SubscriptionStatusIncompleteExpired:
		return ActionExpire
	case stripego.SubscriptionStatusCanceled:
		return ActionCancel
	default:
		return ActionIgnore
	}
}
