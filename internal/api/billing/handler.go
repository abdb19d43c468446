package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/plans"
	"storefront/internal/domain/tenant"
	"storefront/internal/entitlement"
	"storefront/internal/infra/gormstore"
	"storefront/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ledger is satisfied by *entitlement.Ledger.
type Ledger interface {
	Status(ctx context.Context, storeID string) (entitlement.StatusView, error)
	StartTrial(ctx context.Context, storeID, plan string) (entitlement.StatusView, error)
}

type PlanRepo interface {
	ByPriceID(ctx context.Context, priceID string) (*plans.Plan, error)
}

type Checkout interface {
	CreateCheckout(ctx context.Context, req stripe.CheckoutRequest) (string, error)
}

type Handler struct {
	ledger   Ledger
	plans    PlanRepo
	checkout Checkout
	appURL   string
	log      *zap.Logger
}

func NewHandler(ledger Ledger, planRepo PlanRepo, checkout Checkout, appURL string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		ledger:   ledger,
		plans:    planRepo,
		checkout: checkout,
		appURL:   strings.TrimRight(appURL, "/"),
		log:      log,
	}
}

// GET /subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	tc, _ := tenant.FromContext(c.Request.Context())
	view, err := h.ledger.Status(c.Request.Context(), tc.ID())
	if err != nil {
		h.ledgerError(c, tc.ID(), err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /subscription/trial
func (h *Handler) StartTrial(c *gin.Context) {
	var body struct {
		Plan string `json:"plan"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
			return
		}
	}
	plan := strings.ToLower(strings.TrimSpace(body.Plan))
	switch plan {
	case "":
		plan = plans.TierEssential
	case plans.TierEssential, plans.TierProfessional, plans.TierAdvanced:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
		return
	}

	tc, _ := tenant.FromContext(c.Request.Context())
	view, err := h.ledger.StartTrial(c.Request.Context(), tc.ID(), plan)
	if err != nil {
		h.ledgerError(c, tc.ID(), err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /checkout
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var body struct {
		PriceID string `json:"price_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PriceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid price_id"})
		return
	}

	// allow-list price id
	plan, err := h.plans.ByPriceID(c.Request.Context(), body.PriceID)
	if errors.Is(err, gormstore.ErrPlanNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan/price_id"})
		return
	}
	if err != nil {
		h.log.Error("load plan failed", zap.String("price_id", body.PriceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
		return
	}

	tc, _ := tenant.FromContext(c.Request.Context())
	url, err := h.checkout.CreateCheckout(c.Request.Context(), stripe.CheckoutRequest{
		StoreID:       tc.ID(),
		PriceID:       plan.StripePriceID,
		Subscription:  plan.Kind != plans.KindTopup,
		CustomerEmail: c.GetString("email"),
		SuccessURL:    h.appURL + "/account?checkout=success",
		CancelURL:     h.appURL + "/account?canceled=1",
	})
	if errors.Is(err, stripe.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments not configured"})
		return
	}
	if err != nil {
		h.log.Error("create checkout session failed", zap.String("store_id", tc.ID()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) ledgerError(c *gin.Context, storeID string, err error) {
	switch {
	case errors.Is(err, entitlement.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription cannot move to that state"})
	case errors.Is(err, entitlement.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Billing temporarily unavailable"})
	case errors.Is(err, entitlement.ErrMissingStoreID):
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
	default:
		h.log.Error("subscription request failed", zap.String("store_id", storeID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
	}
}
