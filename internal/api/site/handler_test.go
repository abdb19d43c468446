package siteapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain/site"
	"storefront/internal/domain/stores"
	"storefront/internal/domain/tenant"
	"storefront/internal/infra/gormstore"
	"storefront/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *gormstore.Stores) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := gormstore.NewStores(testutil.NewDB(t))
	h := NewHandler(site.NewRegistry(repo), "yourplatform.com", nil)

	r := gin.New()
	r.GET("/slugs/:slug/availability", h.SlugAvailability)
	return r, repo
}

func availability(t *testing.T, r *gin.Engine, slug string) AvailabilityDTO {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slugs/"+slug+"/availability", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var out AvailabilityDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSlugAvailability(t *testing.T) {
	r, repo := newRouter(t)
	require.NoError(t, repo.Create(context.Background(), &stores.Store{Name: "Acme", Slug: "acme"}))
	require.NoError(t, repo.Create(context.Background(), &stores.Store{Name: "Acme 2", Slug: "acme-2"}))

	free := availability(t, r, "fresh-shop")
	assert.True(t, free.Available)
	assert.Equal(t, "https://fresh-shop.yourplatform.com", free.PublicURL)

	taken := availability(t, r, "acme")
	assert.False(t, taken.Available)
	assert.Equal(t, site.ReasonTaken, taken.Reason)
	assert.Equal(t, "acme-3", taken.Suggestion)

	reserved := availability(t, r, "admin")
	assert.Equal(t, site.ReasonReserved, reserved.Reason)
	assert.Equal(t, "admin-2", reserved.Suggestion)

	invalid := availability(t, r, "ab")
	assert.Equal(t, site.ReasonInvalid, invalid.Reason)
	assert.False(t, invalid.Available)
}

func TestCurrentTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, "yourplatform.com", nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		tc := tenant.ForStore("store-1", tenant.ViaSubdomain)
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))
	})
	r.GET("/tenant", h.CurrentTenant)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tenant", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"store_id":"store-1","resolved_via":"subdomain","root":false}`, w.Body.String())
}
