// Package app assembles the service with fx: every component is built once
// here and handed to its consumers; nothing is reached through globals.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/config"
	"storefront/database"
	adminapi "storefront/internal/api/admin"
	billingapi "storefront/internal/api/billing"
	plansapi "storefront/internal/api/plans"
	siteapi "storefront/internal/api/site"
	stripewebhooks "storefront/internal/api/stripewebhook"
	tryonapi "storefront/internal/api/tryon"
	"storefront/internal/aimodel"
	routes "storefront/internal/app/http"
	"storefront/internal/domain/site"
	"storefront/internal/domain/tenant"
	"storefront/internal/entitlement"
	"storefront/internal/infra/gormstore"
	"storefront/internal/infra/storecache"
	"storefront/internal/infra/stripe"
	"storefront/internal/observability/logger"
	"storefront/internal/observability/metrics"
	"storefront/internal/tenancy"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Options(
	fx.Provide(
		config.Load,
		newLogger,
		newDB,
		metrics.New,
		gormstore.NewStores,
		gormstore.NewPlans,
		gormstore.NewLedger,
		newCacheBus,
		newStoreCache,
		newResolver,
		newLedger,
		entitlement.NewCoordinator,
		newStripe,
		newModel,
		newHandlers,
		newEngine,
	),
	fx.Invoke(runCacheBus, runHTTP),
)

func newLogger(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func newDB(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return database.Close(db) },
	})
	return db, nil
}

// newCacheBus returns nil when REDIS_URL is unset; the cache then stays
// process-local.
func newCacheBus(cfg config.Config, log *zap.Logger) (*storecache.RedisBus, error) {
	return storecache.NewRedisBus(cfg.RedisURL, log)
}

func newStoreCache(cfg config.Config, repo *gormstore.Stores, bus *storecache.RedisBus, log *zap.Logger) *storecache.Cache {
	opts := []storecache.Option{storecache.WithLogger(log)}
	if bus != nil {
		opts = append(opts, storecache.WithInvalidator(bus))
	}
	return storecache.New(repo, cfg.StoreCacheTTL, opts...)
}

func newResolver(cfg config.Config, cache *storecache.Cache, log *zap.Logger, m *metrics.Metrics) *tenancy.Resolver {
	rules := tenant.Rules{PlatformDomain: cfg.PlatformDomain, RootPaths: cfg.RootPaths}
	return tenancy.NewResolver(rules, cache, log, m)
}

func newLedger(cfg config.Config, store *gormstore.Ledger, log *zap.Logger, m *metrics.Metrics) *entitlement.Ledger {
	return entitlement.NewLedger(store, entitlement.Config{
		DailyFreeLimit: cfg.DailyFreeLimit,
		TrialDays:      cfg.TrialDays,
		TrialCredits:   cfg.TrialCredits,
	}, entitlement.WithLogger(log), entitlement.WithMetrics(m))
}

func newStripe(cfg config.Config, log *zap.Logger) *stripe.Client {
	c := stripe.NewClient(cfg.StripeSecretKey)
	if c == nil {
		log.Warn("STRIPE_SECRET_KEY not set; checkout and plan sync are disabled")
	}
	return c
}

func newModel(cfg config.Config, log *zap.Logger) *aimodel.Client {
	if cfg.AIModelURL == "" {
		log.Warn("AI_MODEL_URL not set; try-on and casting answer 503")
	}
	return aimodel.NewClient(cfg.AIModelURL)
}

func newHandlers(
	cfg config.Config,
	log *zap.Logger,
	m *metrics.Metrics,
	repo *gormstore.Stores,
	planRepo *gormstore.Plans,
	cache *storecache.Cache,
	resolver *tenancy.Resolver,
	ledger *entitlement.Ledger,
	coord *entitlement.Coordinator,
	gateway *stripe.Client,
	model *aimodel.Client,
) routes.Deps {
	slugs := site.NewRegistry(repo)
	return routes.Deps{
		Admin:   adminapi.NewHandler(repo, slugs, cache, ledger, log.Named("admin")),
		Plans:   plansapi.NewHandler(gateway, planRepo, cfg.StripeProductID, log.Named("plans")),
		Site:    siteapi.NewHandler(slugs, cfg.PlatformDomain, log.Named("site")),
		Billing: billingapi.NewHandler(ledger, planRepo, gateway, cfg.AppURL, log.Named("billing")),
		TryOn:   tryonapi.NewHandler(coord, model, log.Named("tryon")),
		Webhook: stripewebhooks.NewHandler(cfg.StripeWebhookSecret, ledger, planRepo, gateway, m, log.Named("webhook")),

		Resolver:     resolver,
		Ledger:       ledger,
		TenantCookie: cfg.TenantCookie,
		JWTSecret:    []byte(cfg.JWTSecret),
	}
}

func newEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics, deps routes.Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	if cfg.CORSOrigin != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{cfg.CORSOrigin},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-Id"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	routes.RegisterRoutes(r, deps)
	return r
}

// runCacheBus listens for invalidations published by other instances.
func runCacheBus(lc fx.Lifecycle, bus *storecache.RedisBus, cache *storecache.Cache, log *zap.Logger) {
	if bus == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := bus.Subscribe(ctx, cache); err != nil {
					log.Error("store cache invalidation listener stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return bus.Close()
		},
	})
}

func runHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
