package tenancy

import (
	"context"
	"errors"

	"storefront/internal/domain/site"
	"storefront/internal/domain/stores"
	"storefront/internal/domain/tenant"
	"storefront/internal/infra/storecache"
	"storefront/internal/observability/metrics"

	"go.uber.org/zap"
)

// StoreSource answers cached store lookups; *storecache.Cache implements it.
type StoreSource interface {
	Get(ctx context.Context, key storecache.Key) (*stores.Store, error)
}

// Resolver turns request signals into a tenant.Context. It never fails: every
// unresolvable request is served as the root context.
type Resolver struct {
	rules   tenant.Rules
	source  StoreSource
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewResolver(rules tenant.Rules, source StoreSource, log *zap.Logger, m *metrics.Metrics) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{rules: rules, source: source, log: log, metrics: m}
}

func (r *Resolver) Resolve(ctx context.Context, sig tenant.Signals) tenant.Context {
	cls := tenant.Classify(sig, r.rules)
	if cls.Ambiguous {
		r.log.Debug("tenant resolution ambiguous",
			zap.String("host", sig.Host),
			zap.String("winner", cls.Kind.String()),
			zap.String("value", cls.Value),
		)
	}

	if cls.Kind == tenant.KindRoot {
		r.metrics.ObserveResolution(string(tenant.ViaRoot), "root")
		return tenant.Root()
	}

	store, reason := r.lookup(ctx, cls)
	if store == nil {
		r.log.Debug("tenant resolution fell back to root",
			zap.String("via", string(cls.Via())),
			zap.String("value", cls.Value),
			zap.String("reason", reason),
		)
		r.metrics.ObserveResolution(string(cls.Via()), "fallback")
		return tenant.Root()
	}

	r.metrics.ObserveResolution(string(cls.Via()), "store")
	return tenant.ForStore(store.ID, cls.Via())
}

// lookup returns the active store named by cls, or nil with the reason it
// could not be used.
func (r *Resolver) lookup(ctx context.Context, cls tenant.Classification) (*stores.Store, string) {
	var key storecache.Key
	switch cls.Kind {
	case tenant.KindCustomDomain:
		key = storecache.DomainKey(cls.Value)
	case tenant.KindSubdomain, tenant.KindCookieSlug:
		if site.ValidateFormat(cls.Value) != nil {
			return nil, "invalid_slug"
		}
		if site.IsReserved(cls.Value) {
			return nil, "reserved_slug"
		}
		key = storecache.SlugKey(cls.Value)
	default:
		return nil, "unknown_kind"
	}

	store, err := r.source.Get(ctx, key)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, "not_found"
	}
	if err != nil {
		r.log.Warn("store lookup failed during tenant resolution",
			zap.String("key", key.String()), zap.Error(err))
		return nil, "lookup_error"
	}

	switch {
	case store == nil:
		return nil, "not_found"
	case !store.IsActive():
		return nil, "suspended"
	case cls.Kind == tenant.KindCustomDomain && !store.ServesDomain(cls.Value):
		return nil, "domain_unverified"
	case cls.Kind != tenant.KindCustomDomain && store.Slug != cls.Value:
		return nil, "slug_mismatch"
	}
	return store, ""
}
