package routes

import (
	adminapi "storefront/internal/api/admin"
	billingapi "storefront/internal/api/billing"
	plansapi "storefront/internal/api/plans"
	siteapi "storefront/internal/api/site"
	stripewebhooks "storefront/internal/api/stripewebhook"
	tryonapi "storefront/internal/api/tryon"
	"storefront/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Admin   *adminapi.Handler
	Plans   *plansapi.Handler
	Site    *siteapi.Handler
	Billing *billingapi.Handler
	TryOn   *tryonapi.Handler
	Webhook *stripewebhooks.Handler

	Resolver     middleware.Resolver
	Ledger       middleware.StatusReader
	TenantCookie string
	JWTSecret    []byte
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Signature verification needs the raw body, so no sanitizer here.
	r.POST("/webhook", d.Webhook.StripeWebhook)

	public := r.Group("/")
	public.Use(middleware.SanitizeInput())
	public.GET("/plans", d.Plans.ListPlans)
	public.GET("/slugs/:slug/availability", d.Site.SlugAvailability)

	tenanted := r.Group("/")
	tenanted.Use(middleware.ResolveTenant(d.Resolver, d.TenantCookie))
	tenanted.GET("/tenant", d.Site.CurrentTenant)

	// Store-scoped: the request must resolve to an active store.
	store := tenanted.Group("/")
	store.Use(middleware.RequireStore())
	store.POST("/tryon", d.TryOn.TryOn)
	store.POST("/casting", middleware.RequireCapability(d.Ledger, "casting"), d.TryOn.Casting)

	owner := store.Group("/")
	owner.Use(
		middleware.AuthMiddleware(d.JWTSecret),
		middleware.RequireStoreOwner(),
		middleware.SanitizeInput(),
	)
	owner.GET("/subscription", d.Billing.GetSubscription)
	owner.POST("/subscription/trial", d.Billing.StartTrial)
	owner.POST("/checkout", d.Billing.CreateCheckoutSession)

	admin := r.Group("/admin")
	admin.Use(
		middleware.AuthMiddleware(d.JWTSecret),
		middleware.RequireRole(middleware.RoleAdmin),
		middleware.SanitizeInput(),
	)
	admin.POST("/stores", d.Admin.CreateStore)
	admin.PATCH("/stores/:id", d.Admin.UpdateStore)
	admin.POST("/stores/:id/suspend", d.Admin.SuspendStore)
	admin.POST("/stores/:id/credits", d.Admin.GrantCredits)
	admin.POST("/sync-plans", d.Plans.SyncFromStripe)
}
