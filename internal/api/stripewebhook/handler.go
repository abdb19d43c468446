package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"storefront/internal/domain/plans"
	"storefront/internal/entitlement"
	"storefront/internal/infra/gormstore"
	"storefront/internal/observability/metrics"

	"github.com/gin-gonic/gin"
	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
)

const maxBodyBytes = 65536

// Ledger is satisfied by *entitlement.Ledger.
type Ledger interface {
	Activate(ctx context.Context, storeID string, p entitlement.ActivateParams) (entitlement.StatusView, error)
	Expire(ctx context.Context, storeID string) (entitlement.StatusView, error)
	Cancel(ctx context.Context, storeID string) (entitlement.StatusView, error)
	AddTopup(ctx context.Context, storeID, reference string, credits int64) (bool, error)
}

type PlanRepo interface {
	ByPriceID(ctx context.Context, priceID string) (*plans.Plan, error)
}

// Subscriptions fetches the full subscription a checkout session created.
type Subscriptions interface {
	GetSubscription(ctx context.Context, id string) (*stripego.Subscription, error)
}

type Handler struct {
	secret  string
	ledger  Ledger
	plans   PlanRepo
	subs    Subscriptions
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewHandler(secret string, ledger Ledger, planRepo PlanRepo, subs Subscriptions, m *metrics.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{secret: secret, ledger: ledger, plans: planRepo, subs: subs, metrics: m, log: log}
}

// POST /webhook
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.log.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	eventType := string(event.Type)
	err = h.Dispatch(c.Request.Context(), event)
	switch {
	case err == nil:
		h.metrics.ObserveWebhook(eventType, "handled")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	case isPermanent(err):
		// Acknowledged so Stripe stops redelivering an event that can never apply.
		h.log.Info("stripe event ignored",
			zap.String("event_id", event.ID),
			zap.String("type", eventType),
			zap.Error(err))
		h.metrics.ObserveWebhook(eventType, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		h.log.Error("stripe event failed",
			zap.String("event_id", event.ID),
			zap.String("type", eventType),
			zap.Error(err))
		h.metrics.ObserveWebhook(eventType, "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
	}
}

// Dispatch applies one verified event. Event types outside the handled set
// yield ErrUnhandledEvent.
func (h *Handler) Dispatch(ctx context.Context, event stripego.Event) error {
	kind, err := KindOf(string(event.Type))
	if err != nil {
		return err
	}
	if event.Data == nil {
		return errMalformedEvent
	}

	switch kind {
	case KindCheckoutCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
		return h.handleCheckoutSessionCompleted(ctx, &session)

	case KindSubscriptionUpdated:
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
		return h.handleSubscriptionUpdated(ctx, &sub)

	case KindSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
		return h.handleSubscriptionDeleted(ctx, &sub)
	}
	return fmt.Errorf("%w: kind %d", ErrUnhandledEvent, kind)
}

// isPermanent reports errors a redelivery of the same event cannot fix.
func isPermanent(err error) bool {
	for _, target := range []error{
		ErrUnhandledEvent,
		errMalformedEvent,
		errMissingStore,
		gormstore.ErrPlanNotFound,
		entitlement.ErrInvalidTransition,
		entitlement.ErrInvalidAmount,
		entitlement.ErrMissingReference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
