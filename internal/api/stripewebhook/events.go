package stripewebhooks

import (
	"errors"
	"fmt"
)

// EventKind is the closed set of Stripe events the service acts on.
type EventKind int

const (
	KindCheckoutCompleted EventKind = iota + 1
	KindSubscriptionUpdated
	KindSubscriptionDeleted
)

var eventKinds = map[string]EventKind{
	"checkout.session.completed":    KindCheckoutCompleted,
	"customer.subscription.updated": KindSubscriptionUpdated,
	"customer.subscription.deleted": KindSubscriptionDeleted,
}

var (
	// ErrUnhandledEvent is returned for every event type outside the closed set.
	ErrUnhandledEvent = errors.New("stripewebhook: unhandled event type")

	errMalformedEvent = errors.New("stripewebhook: malformed event payload")
	errMissingStore   = errors.New("stripewebhook: event carries no store_id")
)

func (k EventKind) String() string {
	for name, kind := range eventKinds {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// KindOf maps a Stripe event type onto its EventKind.
func KindOf(eventType string) (EventKind, error) {
	if k, ok := eventKinds[eventType]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnhandledEvent, eventType)
}
