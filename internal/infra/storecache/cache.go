package storecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"storefront/internal/domain/stores"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Kind string

const (
	KindDomain Kind = "domain"
	KindSlug   Kind = "slug"
)

// Key identifies one cached lookup.
type Key struct {
	Kind  Kind
	Value string
}

func DomainKey(domain string) Key { return Key{Kind: KindDomain, Value: strings.ToLower(domain)} }
func SlugKey(slug string) Key     { return Key{Kind: KindSlug, Value: slug} }

func (k Key) String() string { return string(k.Kind) + ":" + k.Value }

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Key{}, fmt.Errorf("malformed cache key %q", s)
	}
	switch Kind(kind) {
	case KindDomain, KindSlug:
		return Key{Kind: Kind(kind), Value: value}, nil
	}
	return Key{}, fmt.Errorf("unknown cache key kind %q", kind)
}

// KeysFor lists every key under which s can be cached.
func KeysFor(s *stores.Store) []Key {
	if s == nil {
		return nil
	}
	keys := []Key{SlugKey(s.Slug)}
	if s.CustomDomain != nil && *s.CustomDomain != "" {
		keys = append(keys, DomainKey(*s.CustomDomain))
	}
	return keys
}

// Lookup is the authoritative store source. Misses return stores.ErrNotFound.
type Lookup interface {
	BySlug(ctx context.Context, slug string) (*stores.Store, error)
	ByDomain(ctx context.Context, domain string) (*stores.Store, error)
}

// Invalidator fans invalidations out to other instances.
type Invalidator interface {
	Publish(ctx context.Context, keys ...Key) error
}

// Cache memoises store lookups by slug and custom domain. A nil store entry
// remembers a miss for the same ttl as a hit.
type Cache struct {
	lookup  Lookup
	entries *TTLCache[Key, *stores.Store]
	group   singleflight.Group
	gen     atomic.Uint64
	bus     Invalidator
	log     *zap.Logger
}

type Option func(*Cache)

func WithInvalidator(bus Invalidator) Option {
	return func(c *Cache) { c.bus = bus }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.entries.now = now }
}

func New(lookup Lookup, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		lookup:  lookup,
		entries: NewTTLCache[Key, *stores.Store](ttl, nil),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the store for key, going to the lookup on a miss or an expired
// entry. A known-absent store yields stores.ErrNotFound. Lookup failures are
// returned and not cached.
func (c *Cache) Get(ctx context.Context, key Key) (*stores.Store, error) {
	if s, ok := c.entries.Get(key); ok {
		if s == nil {
			return nil, stores.ErrNotFound
		}
		return s, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		gen := c.gen.Load()
		s, err := c.fetch(ctx, key)
		if errors.Is(err, stores.ErrNotFound) {
			s, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
		// An invalidation that raced the lookup wins; the next Get refetches.
		if c.gen.Load() == gen {
			c.entries.Set(key, s)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(*stores.Store)
	if s == nil {
		return nil, stores.ErrNotFound
	}
	return s, nil
}

func (c *Cache) fetch(ctx context.Context, key Key) (*stores.Store, error) {
	switch key.Kind {
	case KindDomain:
		return c.lookup.ByDomain(ctx, key.Value)
	case KindSlug:
		return c.lookup.BySlug(ctx, key.Value)
	}
	return nil, fmt.Errorf("unknown cache key kind %q", key.Kind)
}

// Invalidate drops keys locally and, when a bus is configured, on every
// other instance. A publish failure is logged; the local drop still holds and
// remote entries age out within one ttl.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) {
	c.Drop(keys...)
	if c.bus == nil || len(keys) == 0 {
		return
	}
	if err := c.bus.Publish(ctx, keys...); err != nil {
		c.log.Warn("store cache invalidation publish failed",
			zap.Error(err), zap.Int("keys", len(keys)))
	}
}

// Drop removes keys from this instance only.
func (c *Cache) Drop(keys ...Key) {
	if len(keys) == 0 {
		return
	}
	c.gen.Add(1)
	c.entries.Delete(keys...)
	for _, k := range keys {
		c.group.Forget(k.String())
	}
}
