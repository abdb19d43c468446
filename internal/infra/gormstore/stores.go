package gormstore

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/stores"

	"gorm.io/gorm"
)

var (
	ErrStoreNotFound = stores.ErrNotFound
	ErrDuplicate     = errors.New("duplicate key")
)

type Stores struct {
	db *gorm.DB
}

func NewStores(db *gorm.DB) *Stores {
	return &Stores{db: db}
}

// SlugExists backs the slug registry uniqueness check. Suspended stores keep
// their slug.
func (r *Stores) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&stores.Store{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *Stores) BySlug(ctx context.Context, slug string) (*stores.Store, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *Stores) ByDomain(ctx context.Context, domain string) (*stores.Store, error) {
	return r.first(ctx, "custom_domain = ?", strings.ToLower(domain))
}

func (r *Stores) ByID(ctx context.Context, id string) (*stores.Store, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Stores) Create(ctx context.Context, s *stores.Store) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Save persists every column of s.
func (r *Stores) Save(ctx context.Context, s *stores.Store) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *Stores) first(ctx context.Context, query string, arg any) (*stores.Store, error) {
	var s stores.Store
	err := r.db.WithContext(ctx).Where(query, arg).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
