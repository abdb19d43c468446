package admin

import "storefront/internal/domain/stores"

type createStoreRequest struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	OwnerEmail     string  `json:"owner_email"`
	CustomDomain   *string `json:"custom_domain"`
	DomainVerified bool    `json:"domain_verified"`
}

// updateStoreRequest only touches the fields that are present.
type updateStoreRequest struct {
	Name           *string        `json:"name"`
	Slug           *string        `json:"slug"`
	CustomDomain   *string        `json:"custom_domain"`
	DomainVerified *bool          `json:"domain_verified"`
	Status         *stores.Status `json:"status"`
}

type grantCreditsRequest struct {
	Credits   int64  `json:"credits"`
	Reference string `json:"reference"`
}
