package tenant

import "context"

type ResolvedVia string

const (
	ViaCustomDomain ResolvedVia = "custom-domain"
	ViaSubdomain    ResolvedVia = "subdomain"
	ViaCookie       ResolvedVia = "cookie"
	ViaRoot         ResolvedVia = "root"
)

// Context is the per-request tenant scope. A nil StoreID is the root/marketing
// context, which is a resolved state and not "unresolved".
type Context struct {
	StoreID     *string     `json:"store_id"`
	ResolvedVia ResolvedVia `json:"resolved_via"`
}

func Root() Context {
	return Context{ResolvedVia: ViaRoot}
}

func ForStore(storeID string, via ResolvedVia) Context {
	return Context{StoreID: &storeID, ResolvedVia: via}
}

func (c Context) IsRoot() bool {
	return c.StoreID == nil
}

// ID returns the store id, or "" for the root context.
func (c Context) ID() string {
	if c.StoreID == nil {
		return ""
	}
	return *c.StoreID
}

type contextKey struct{}

func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the resolved tenant; ok is false when resolution never ran.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	tc, ok := ctx.Value(contextKey{}).(Context)
	return tc, ok
}
