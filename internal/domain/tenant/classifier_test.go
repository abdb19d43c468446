package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testRules = Rules{PlatformDomain: "yourplatform.com", RootPaths: []string{"/pricing", "/signup"}}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		sig       Signals
		kind      Kind
		value     string
		ambiguous bool
	}{
		{"apex is root", Signals{Host: "yourplatform.com"}, KindRoot, "", false},
		{"www apex is root", Signals{Host: "www.yourplatform.com"}, KindRoot, "", false},
		{"platform subdomain", Signals{Host: "my-shop1.yourplatform.com"}, KindSubdomain, "my-shop1", false},
		{"subdomain with port and case", Signals{Host: "My-Shop1.YourPlatform.com:8443"}, KindSubdomain, "my-shop1", false},
		{"custom domain", Signals{Host: "shop.example.org"}, KindCustomDomain, "shop.example.org", false},
		{"custom domain trailing dot", Signals{Host: "shop.example.org."}, KindCustomDomain, "shop.example.org", false},
		{"cookie on apex", Signals{Host: "yourplatform.com", HasCookie: true, CookieSlug: "acme"}, KindCookieSlug, "acme", false},
		{"cookie on localhost", Signals{Host: "localhost:3000", HasCookie: true, CookieSlug: "acme"}, KindCookieSlug, "acme", false},
		{"cookie flag without value", Signals{Host: "yourplatform.com", HasCookie: true}, KindRoot, "", false},
		{"cookie value without flag", Signals{Host: "yourplatform.com", CookieSlug: "acme"}, KindRoot, "", false},
		{"cookie ignored on root path", Signals{Host: "yourplatform.com", Path: "/pricing", HasCookie: true, CookieSlug: "acme"}, KindRoot, "", false},
		{"cookie ignored on root sub path", Signals{Host: "yourplatform.com", Path: "/signup/step-2", HasCookie: true, CookieSlug: "acme"}, KindRoot, "", false},
		{"root path prefix does not over-match", Signals{Host: "yourplatform.com", Path: "/pricingx", HasCookie: true, CookieSlug: "acme"}, KindCookieSlug, "acme", false},
		{"custom domain beats cookie", Signals{Host: "shop.example.org", HasCookie: true, CookieSlug: "other"}, KindCustomDomain, "shop.example.org", true},
		{"subdomain beats cookie", Signals{Host: "acme.yourplatform.com", HasCookie: true, CookieSlug: "other"}, KindSubdomain, "acme", true},
		{"nested subdomain degrades", Signals{Host: "a.b.yourplatform.com"}, KindRoot, "", false},
		{"nested subdomain falls to cookie", Signals{Host: "a.b.yourplatform.com", HasCookie: true, CookieSlug: "acme"}, KindCookieSlug, "acme", false},
		{"empty host", Signals{}, KindRoot, "", false},
		{"garbage host", Signals{Host: "exa mple..com"}, KindRoot, "", false},
		{"underscore host", Signals{Host: "bad_host.example.com"}, KindRoot, "", false},
		{"ipv4 host", Signals{Host: "10.0.0.5:8080"}, KindRoot, "", false},
		{"ipv6 host", Signals{Host: "[::1]:8080"}, KindRoot, "", false},
		{"single label host", Signals{Host: "intranet"}, KindRoot, "", false},
		{"leading hyphen label", Signals{Host: "-shop.yourplatform.com"}, KindRoot, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.sig, testRules)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.value, got.Value)
			assert.Equal(t, tt.ambiguous, got.Ambiguous)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	sig := Signals{Host: "shop.example.org", Path: "/products", HasCookie: true, CookieSlug: "acme"}
	first := Classify(sig, testRules)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(sig, testRules))
	}
}

func TestClassificationVia(t *testing.T) {
	assert.Equal(t, ViaCustomDomain, Classification{Kind: KindCustomDomain}.Via())
	assert.Equal(t, ViaSubdomain, Classification{Kind: KindSubdomain}.Via())
	assert.Equal(t, ViaCookie, Classification{Kind: KindCookieSlug}.Via())
	assert.Equal(t, ViaRoot, Classification{}.Via())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithContext(context.Background(), ForStore("store-1", ViaSubdomain))
	tc, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.False(t, tc.IsRoot())
	assert.Equal(t, "store-1", tc.ID())

	ctx = WithContext(context.Background(), Root())
	tc, ok = FromContext(ctx)
	assert.True(t, ok)
	assert.True(t, tc.IsRoot())
	assert.Equal(t, "", tc.ID())
}
