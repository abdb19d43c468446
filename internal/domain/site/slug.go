package site

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	gosimpleslug "github.com/gosimple/slug"
)

/*
	Slug registry
	-------------
	- Responsible ONLY for:
	  • slug format rules
	  • the reserved-word list
	  • uniqueness checks against existing stores
	- Reservation happens when the store row is inserted (unique index), not here.
*/

const (
	MinSlugLength = 3
	MaxSlugLength = 30
)

var (
	ErrInvalidFormat = errors.New("slug: invalid format")
	ErrReserved      = errors.New("slug: reserved")
	ErrTaken         = errors.New("slug: already taken")
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,28}[a-z0-9]$`)
	slugDisallowed = regexp.MustCompile(`[^a-z0-9]+`)
)

type Reason string

const (
	ReasonInvalid  Reason = "invalid"
	ReasonReserved Reason = "reserved"
	ReasonTaken    Reason = "taken"
)

type Availability struct {
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
}

// Err converts an unavailable result into the matching sentinel error.
func (a Availability) Err() error {
	switch a.Reason {
	case ReasonInvalid:
		return ErrInvalidFormat
	case ReasonReserved:
		return ErrReserved
	case ReasonTaken:
		return ErrTaken
	}
	return nil
}

// ValidateFormat: 3-30 chars, lowercase alnum and hyphen, no leading/trailing hyphen.
func ValidateFormat(slug string) error {
	if !slugPattern.MatchString(slug) {
		return ErrInvalidFormat
	}
	return nil
}

func IsReserved(slug string) bool {
	_, ok := reserved[slug]
	return ok
}

// SlugLookup answers whether a slug is already used by a store.
type SlugLookup interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type Registry struct {
	lookup SlugLookup
}

func NewRegistry(lookup SlugLookup) *Registry {
	return &Registry{lookup: lookup}
}

// IsAvailable only checks uniqueness. It does not reserve anything.
func (r *Registry) IsAvailable(ctx context.Context, slug string) (bool, error) {
	exists, err := r.lookup.SlugExists(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("slug lookup: %w", err)
	}
	return !exists, nil
}

// Check answers "can I use this slug". Format and reserved checks run first
// so obviously bad input never reaches the database.
func (r *Registry) Check(ctx context.Context, slug string) (Availability, error) {
	if err := ValidateFormat(slug); err != nil {
		return Availability{Reason: ReasonInvalid}, nil
	}
	if IsReserved(slug) {
		return Availability{Reason: ReasonReserved}, nil
	}
	ok, err := r.IsAvailable(ctx, slug)
	if err != nil {
		return Availability{}, err
	}
	if !ok {
		return Availability{Reason: ReasonTaken}, nil
	}
	return Availability{Available: true}, nil
}

// Alternative returns the first free "<base>-N" for N in 2..9, or "" when
// none is free.
func (r *Registry) Alternative(ctx context.Context, base string) (string, error) {
	if ValidateFormat(base) != nil {
		base = SuggestSlug(base)
	}
	if len(base) > MaxSlugLength-2 {
		base = strings.TrimRight(base[:MaxSlugLength-2], "-")
	}
	for n := 2; n <= 9; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		a, err := r.Check(ctx, candidate)
		if err != nil {
			return "", err
		}
		if a.Available {
			return candidate, nil
		}
	}
	return "", nil
}

// SuggestSlug generates a URL-safe slug from a store name.
// Example: "Café Déjà Vu!" -> "cafe-deja-vu"
func SuggestSlug(name string) string {
	// gosimple keeps underscores; the slug format does not.
	s := gosimpleslug.Make(strings.TrimSpace(name))
	s = strings.Trim(slugDisallowed.ReplaceAllString(s, "-"), "-")
	if len(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	for len(s) < MinSlugLength {
		s += "-shop"
		s = strings.TrimLeft(s, "-")
	}
	if IsReserved(s) {
		s = strings.TrimRight(s[:min(len(s), MaxSlugLength-5)], "-") + "-shop"
	}
	return s
}

// BuildPublicURL builds the public store URL from a slug.
// Example: "john-doe" -> "https://john-doe.yourplatform.com"
func BuildPublicURL(slug, platformDomain string) string {
	return "https://" + slug + "." + platformDomain
}
