package siteapi

import "storefront/internal/domain/site"

type AvailabilityDTO struct {
	Slug       string      `json:"slug"`
	Available  bool        `json:"available"`
	Reason     site.Reason `json:"reason,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	PublicURL  string      `json:"public_url,omitempty"`
}

type TenantDTO struct {
	StoreID     *string `json:"store_id"`
	ResolvedVia string  `json:"resolved_via"`
	Root        bool    `json:"root"`
}
