package siteapi

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/domain/site"
	"storefront/internal/domain/tenant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Slugs is satisfied by *site.Registry.
type Slugs interface {
	Check(ctx context.Context, slug string) (site.Availability, error)
	Alternative(ctx context.Context, base string) (string, error)
}

type Handler struct {
	slugs          Slugs
	platformDomain string
	log            *zap.Logger
}

func NewHandler(slugs Slugs, platformDomain string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{slugs: slugs, platformDomain: platformDomain, log: log}
}

// GET /slugs/:slug/availability
func (h *Handler) SlugAvailability(c *gin.Context) {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))

	avail, err := h.slugs.Check(c.Request.Context(), slug)
	if err != nil {
		h.log.Error("slug check failed", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check slug"})
		return
	}

	out := AvailabilityDTO{Slug: slug, Available: avail.Available, Reason: avail.Reason}
	if avail.Available {
		out.PublicURL = site.BuildPublicURL(slug, h.platformDomain)
		c.JSON(http.StatusOK, out)
		return
	}

	// A failed suggestion only loses the hint.
	suggestion, err := h.slugs.Alternative(c.Request.Context(), slug)
	if err != nil {
		h.log.Warn("slug suggestion failed", zap.String("slug", slug), zap.Error(err))
	}
	out.Suggestion = suggestion
	c.JSON(http.StatusOK, out)
}

// GET /tenant
func (h *Handler) CurrentTenant(c *gin.Context) {
	tc, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		tc = tenant.Root()
	}
	c.JSON(http.StatusOK, TenantDTO{
		StoreID:     tc.StoreID,
		ResolvedVia: string(tc.ResolvedVia),
		Root:        tc.IsRoot(),
	})
}
