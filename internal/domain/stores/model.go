package stores

import (
	"errors"
	"time"

	"storefront/internal/domain/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned by store lookups that match no row.
var ErrNotFound = errors.New("store not found")

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Store is a tenant. Rows are never hard-deleted; Suspend soft-disables them.
type Store struct {
	ID             string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name           string  `gorm:"not null" json:"name"`
	Slug           string  `gorm:"not null;uniqueIndex:idx_stores_slug" json:"slug"`
	CustomDomain   *string `gorm:"column:custom_domain;uniqueIndex:idx_stores_custom_domain" json:"custom_domain,omitempty"`
	DomainVerified bool    `gorm:"not null;default:false" json:"domain_verified"`
	Status         Status  `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	OwnerEmail     string  `gorm:"index" json:"owner_email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	return nil
}

func (s *Store) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// ServesDomain reports whether host is this store's verified custom domain.
func (s *Store) ServesDomain(host string) bool {
	if s == nil || s.CustomDomain == nil || !s.DomainVerified {
		return false
	}
	return tenant.NormalizeHost(*s.CustomDomain) == tenant.NormalizeHost(host)
}
