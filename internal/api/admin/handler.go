package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/site"
	"storefront/internal/domain/stores"
	"storefront/internal/entitlement"
	"storefront/internal/infra/gormstore"
	"storefront/internal/infra/storecache"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StoreRepo interface {
	ByID(ctx context.Context, id string) (*stores.Store, error)
	Create(ctx context.Context, s *stores.Store) error
	Save(ctx context.Context, s *stores.Store) error
}

type SlugChecker interface {
	Check(ctx context.Context, slug string) (site.Availability, error)
}

// CacheInvalidator is satisfied by *storecache.Cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...storecache.Key)
}

type Credits interface {
	AddTopup(ctx context.Context, storeID, reference string, credits int64) (bool, error)
}

// Handler serves the platform operator endpoints under /admin.
type Handler struct {
	stores  StoreRepo
	slugs   SlugChecker
	cache   CacheInvalidator
	credits Credits
	log     *zap.Logger
}

func NewHandler(repo StoreRepo, slugs SlugChecker, cache CacheInvalidator, credits Credits, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{stores: repo, slugs: slugs, cache: cache, credits: credits, log: log}
}

// POST /admin/stores
func (h *Handler) CreateStore(c *gin.Context) {
	var body createStoreRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid name"})
		return
	}

	slug := strings.TrimSpace(body.Slug)
	if slug == "" {
		slug = site.SuggestSlug(body.Name)
	}
	if !h.slugUsable(c, slug) {
		return
	}

	store := &stores.Store{
		Name:           strings.TrimSpace(body.Name),
		Slug:           slug,
		OwnerEmail:     strings.ToLower(strings.TrimSpace(body.OwnerEmail)),
		CustomDomain:   normalizeDomain(body.CustomDomain),
		DomainVerified: body.DomainVerified,
	}
	if err := h.stores.Create(c.Request.Context(), store); err != nil {
		if errors.Is(err, gormstore.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug or domain already in use", "reason": site.ReasonTaken})
			return
		}
		h.log.Error("create store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create store"})
		return
	}

	// A cached "not found" for this slug or domain must not outlive the insert.
	h.cache.Invalidate(c.Request.Context(), storecache.KeysFor(store)...)
	h.log.Info("store created", zap.String("store_id", store.ID), zap.String("slug", store.Slug))
	c.JSON(http.StatusCreated, store)
}

// PATCH /admin/stores/:id
func (h *Handler) UpdateStore(c *gin.Context) {
	var body updateStoreRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
		return
	}

	store, ok := h.loadStore(c)
	if !ok {
		return
	}
	before := storecache.KeysFor(store)

	if body.Name != nil && strings.TrimSpace(*body.Name) != "" {
		store.Name = strings.TrimSpace(*body.Name)
	}
	if body.Slug != nil && strings.TrimSpace(*body.Slug) != store.Slug {
		slug := strings.TrimSpace(*body.Slug)
		if !h.slugUsable(c, slug) {
			return
		}
		store.Slug = slug
	}
	if body.CustomDomain != nil {
		store.CustomDomain = normalizeDomain(body.CustomDomain)
		store.DomainVerified = false
	}
	if body.DomainVerified != nil {
		store.DomainVerified = *body.DomainVerified && store.CustomDomain != nil
	}
	if body.Status != nil {
		switch *body.Status {
		case stores.StatusActive, stores.StatusSuspended:
			store.Status = *body.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
	}

	h.save(c, store, before)
}

// POST /admin/stores/:id/suspend
func (h *Handler) SuspendStore(c *gin.Context) {
	store, ok := h.loadStore(c)
	if !ok {
		return
	}
	store.Status = stores.StatusSuspended
	h.save(c, store, storecache.KeysFor(store))
}

// POST /admin/stores/:id/credits
func (h *Handler) GrantCredits(c *gin.Context) {
	var body grantCreditsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
		return
	}
	store, ok := h.loadStore(c)
	if !ok {
		return
	}

	applied, err := h.credits.AddTopup(c.Request.Context(), store.ID, body.Reference, body.Credits)
	switch {
	case errors.Is(err, entitlement.ErrInvalidAmount), errors.Is(err, entitlement.ErrMissingReference):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, entitlement.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Billing temporarily unavailable"})
		return
	case err != nil:
		h.log.Error("grant credits failed", zap.String("store_id", store.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to grant credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"store_id":  store.ID,
		"reference": strings.TrimSpace(body.Reference),
		"credits":   body.Credits,
		"applied":   applied,
	})
}

func (h *Handler) loadStore(c *gin.Context) (*stores.Store, bool) {
	store, err := h.stores.ByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, stores.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error("load store failed", zap.String("store_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load store"})
		return nil, false
	}
	return store, true
}

// slugUsable writes the rejection itself and reports whether slug may be used.
func (h *Handler) slugUsable(c *gin.Context, slug string) bool {
	avail, err := h.slugs.Check(c.Request.Context(), slug)
	if err != nil {
		h.log.Error("slug check failed", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check slug"})
		return false
	}
	switch avail.Reason {
	case "":
		return true
	case site.ReasonTaken:
		c.JSON(http.StatusConflict, gin.H{"error": avail.Err().Error(), "reason": avail.Reason})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": avail.Err().Error(), "reason": avail.Reason})
	}
	return false
}

// save persists store and invalidates both the keys it was cached under
// before the change and the ones it answers to now.
func (h *Handler) save(c *gin.Context, store *stores.Store, before []storecache.Key) {
	if err := h.stores.Save(c.Request.Context(), store); err != nil {
		if errors.Is(err, gormstore.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug or domain already in use", "reason": site.ReasonTaken})
			return
		}
		h.log.Error("save store failed", zap.String("store_id", store.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update store"})
		return
	}

	h.cache.Invalidate(c.Request.Context(), append(before, storecache.KeysFor(store)...)...)
	h.log.Info("store updated",
		zap.String("store_id", store.ID),
		zap.String("slug", store.Slug),
		zap.String("status", string(store.Status)))
	c.JSON(http.StatusOK, store)
}

func normalizeDomain(d *string) *string {
	if d == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(*d), "."))
	if v == "" {
		return nil
	}
	return &v
}
