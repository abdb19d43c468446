package tenancy

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/stores"
	"storefront/internal/domain/tenant"
	"storefront/internal/infra/storecache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type sourceMock struct {
	mock.Mock
}

func (m *sourceMock) Get(ctx context.Context, key storecache.Key) (*stores.Store, error) {
	args := m.Called(ctx, key)
	s, _ := args.Get(0).(*stores.Store)
	return s, args.Error(1)
}

var rules = tenant.Rules{PlatformDomain: "yourplatform.com", RootPaths: []string{"/pricing"}}

func domainPtr(s string) *string { return &s }

func newResolver(src StoreSource) *Resolver {
	return NewResolver(rules, src, nil, nil)
}

func TestResolveCustomDomain(t *testing.T) {
	src := new(sourceMock)
	src.On("Get", mock.Anything, storecache.DomainKey("shop.acme.test")).
		Return(&stores.Store{ID: "s1", Slug: "acme", Status: stores.StatusActive, CustomDomain: domainPtr("shop.acme.test"), DomainVerified: true}, nil)

	got := newResolver(src).Resolve(context.Background(), tenant.Signals{Host: "Shop.Acme.test:443"})
	assert.Equal(t, tenant.ForStore("s1", tenant.ViaCustomDomain), got)
}

func TestResolveSubdomain(t *testing.T) {
	src := new(sourceMock)
	src.On("Get", mock.Anything, storecache.SlugKey("acme")).
		Return(&stores.Store{ID: "s1", Slug: "acme", Status: stores.StatusActive}, nil)

	got := newResolver(src).Resolve(context.Background(), tenant.Signals{Host: "acme.yourplatform.com"})
	assert.Equal(t, tenant.ForStore("s1", tenant.ViaSubdomain), got)
}

func TestResolveCookie(t *testing.T) {
	src := new(sourceMock)
	src.On("Get", mock.Anything, storecache.SlugKey("acme")).
		Return(&stores.Store{ID: "s1", Slug: "acme", Status: stores.StatusActive}, nil)

	got := newResolver(src).Resolve(context.Background(),
		tenant.Signals{Host: "yourplatform.com", Path: "/products", HasCookie: true, CookieSlug: "acme"})
	assert.Equal(t, tenant.ForStore("s1", tenant.ViaCookie), got)
}

func TestResolvePrecedence(t *testing.T) {
	src := new(sourceMock)
	src.On("Get", mock.Anything, storecache.DomainKey("shop.acme.test")).
		Return(&stores.Store{ID: "s1", Slug: "acme", Status: stores.StatusActive, CustomDomain: domainPtr("shop.acme.test"), DomainVerified: true}, nil)

	got := newResolver(src).Resolve(context.Background(),
		tenant.Signals{Host: "shop.acme.test", HasCookie: true, CookieSlug: "other"})
	assert.Equal(t, tenant.ForStore("s1", tenant.ViaCustomDomain), got)
	src.AssertNotCalled(t, "Get", mock.Anything, storecache.SlugKey("other"))
}

func TestResolveRootSkipsLookup(t *testing.T) {
	src := new(sourceMock)
	r := newResolver(src)

	assert.Equal(t, tenant.Root(), r.Resolve(context.Background(), tenant.Signals{Host: "yourplatform.com"}))
	assert.Equal(t, tenant.Root(), r.Resolve(context.Background(),
		tenant.Signals{Host: "yourplatform.com", Path: "/pricing", HasCookie: true, CookieSlug: "acme"}))
	src.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestResolveFallsBackToRoot(t *testing.T) {
	active := &stores.Store{ID: "s1", Slug: "acme", Status: stores.StatusActive}
	suspended := &stores.Store{ID: "s2", Slug: "gone", Status: stores.StatusSuspended}
	unverified := &stores.Store{ID: "s3", Slug: "new", Status: stores.StatusActive, CustomDomain: domainPtr("new.test")}

	tests := []struct {
		name  string
		sig   tenant.Signals
		key   storecache.Key
		store *stores.Store
		err   error
	}{
		{"unknown slug", tenant.Signals{Host: "ghost.yourplatform.com"}, storecache.SlugKey("ghost"), nil, stores.ErrNotFound},
		{"lookup error", tenant.Signals{Host: "acme.yourplatform.com"}, storecache.SlugKey("acme"), nil, errors.New("db down")},
		{"suspended store", tenant.Signals{Host: "gone.yourplatform.com"}, storecache.SlugKey("gone"), suspended, nil},
		{"unverified domain", tenant.Signals{Host: "new.test"}, storecache.DomainKey("new.test"), unverified, nil},
		{"unknown domain", tenant.Signals{Host: "nobody.test", HasCookie: true, CookieSlug: "acme"}, storecache.DomainKey("nobody.test"), nil, stores.ErrNotFound},
		{"mismatched mapping", tenant.Signals{Host: "other.yourplatform.com"}, storecache.SlugKey("other"), active, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(sourceMock)
			src.On("Get", mock.Anything, tt.key).Return(tt.store, tt.err)
			got := newResolver(src).Resolve(context.Background(), tt.sig)
			assert.Equal(t, tenant.Root(), got)
		})
	}
}

func TestResolveInvalidSlugSkipsLookup(t *testing.T) {
	src := new(sourceMock)
	r := newResolver(src)

	for _, sig := range []tenant.Signals{
		{Host: "ab.yourplatform.com"},
		{Host: "admin.yourplatform.com"},
		{Host: "yourplatform.com", HasCookie: true, CookieSlug: "not a slug"},
	} {
		assert.Equal(t, tenant.Root(), r.Resolve(context.Background(), sig), sig.Host)
	}
	src.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestResolveIsDeterministic(t *testing.T) {
	src := new(sourceMock)
	src.On("Get", mock.Anything, storecache.SlugKey("acme")).
		Return(&stores.Store{ID: "s1", Slug: "acme", Status: stores.StatusActive}, nil)
	r := newResolver(src)

	sig := tenant.Signals{Host: "acme.yourplatform.com", HasCookie: true, CookieSlug: "other"}
	first := r.Resolve(context.Background(), sig)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Resolve(context.Background(), sig))
	}
}
