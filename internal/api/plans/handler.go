package plans

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain/plans"

	"github.com/gin-gonic/gin"
	stripego "github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

// PriceSource is satisfied by *stripe.Client.
type PriceSource interface {
	ListPrices(ctx context.Context) ([]*stripego.Price, error)
}

type Repo interface {
	List(ctx context.Context) ([]plans.Plan, error)
	Upsert(ctx context.Context, p *plans.Plan) (bool, error)
}

type Handler struct {
	prices PriceSource
	repo   Repo
	// productID restricts the sync to one Stripe product when set.
	productID string
	log       *zap.Logger
}

func NewHandler(prices PriceSource, repo Repo, productID string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{prices: prices, repo: repo, productID: productID, log: log}
}

// GET /plans
func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.log.Error("list plans failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /admin/sync-plans
//
// Recurring EUR prices become subscription plans. One-time EUR prices
// become top-up packs when their metadata says kind=topup and carries a
// positive credits value.
func (h *Handler) SyncFromStripe(c *gin.Context) {
	prices, err := h.prices.ListPrices(c.Request.Context())
	if err != nil {
		h.log.Error("fetch stripe prices failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch Stripe prices"})
		return
	}

	created, updated, skipped := 0, 0, 0
	for _, p := range prices {
		plan, ok := h.planFromPrice(p)
		if !ok {
			skipped++
			continue
		}
		isNew, err := h.repo.Upsert(c.Request.Context(), plan)
		if err != nil {
			h.log.Error("upsert plan failed", zap.String("price_id", p.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save plan"})
			return
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	h.log.Info("plans synced",
		zap.Int("created", created), zap.Int("updated", updated), zap.Int("skipped", skipped))
	c.JSON(http.StatusOK, gin.H{
		"synced":  created + updated,
		"created": created,
		"updated": updated,
		"skipped": skipped,
	})
}

func (h *Handler) planFromPrice(p *stripego.Price) (*plans.Plan, bool) {
	if p == nil || !p.Active || p.Product == nil || !p.Product.Active {
		return nil, false
	}
	if h.productID != "" && p.Product.ID != h.productID {
		return nil, false
	}
	if string(p.Currency) != "eur" {
		return nil, false
	}
	meta := p.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	if meta["visible"] == "false" {
		return nil, false
	}

	plan := &plans.Plan{
		Name:          p.Product.Name,
		PriceEUR:      float64(p.UnitAmount) / 100.0,
		StripePriceID: p.ID,
		Kind:          plans.KindSubscription,
	}
	if v := meta["name"]; v != "" {
		plan.Name = v
	}
	if n, err := strconv.ParseInt(meta["credits"], 10, 64); err == nil && n > 0 {
		plan.Credits = n
	}

	if p.Recurring != nil {
		plan.Interval = string(p.Recurring.Interval)
		plan.Tier = strings.ToLower(meta["tier"])
		if plan.Tier == "" {
			plan.Tier = strings.ToLower(meta["plan"])
		}
		return plan, true
	}

	if plans.Kind(meta["kind"]) != plans.KindTopup || plan.Credits == 0 {
		return nil, false
	}
	plan.Kind = plans.KindTopup
	return plan, true
}
