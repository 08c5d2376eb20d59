// Package profile provides owner profile storage and first-name resolution.
//
// The maintenance worker personalizes summaries with the owner's first name.
// The name comes from a stored profile when one exists, falling back to the
// local part of the owner's email address. When neither source yields a name,
// personalization is reported as unavailable rather than failed.
package profile

import (
	"context"
	"strings"
	"time"
)

// Profile contains the per-owner data used for personalization.
type Profile struct {
	// ID is the unique identifier of the profile row.
	ID int64

	// OwnerID identifies the user this profile belongs to.
	OwnerID string

	// FirstName is the user's stored first name (may be empty).
	FirstName string

	// Email is the user's email address (may be empty).
	Email string

	// CreatedAt is when the profile was created.
	CreatedAt time.Time

	// UpdatedAt is when the profile was last updated.
	UpdatedAt time.Time
}

// Store defines the interface for profile storage backends.
type Store interface {
	// Save upserts the profile keyed by OwnerID and returns the profile id.
	Save(ctx context.Context, profile *Profile) (int64, error)

	// GetByOwnerID retrieves a profile by owner, or nil if none exists.
	GetByOwnerID(ctx context.Context, ownerID string) (*Profile, error)

	// Delete removes the profile for an owner. Deleting a missing profile
	// is not an error.
	Delete(ctx context.Context, ownerID string) error

	// Close closes the store and releases resources.
	Close() error
}

// Resolver resolves the first name used to personalize summaries.
//
// Implementations return "" (with a nil error) when no name can be resolved;
// an error is reserved for lookup failures.
type Resolver interface {
	FirstName(ctx context.Context, ownerID string) (string, error)
}

// StoreResolver resolves first names from a profile Store, falling back to
// the local part of the stored email address.
type StoreResolver struct {
	store Store
}

// NewStoreResolver creates a Resolver backed by the given Store.
func NewStoreResolver(store Store) *StoreResolver {
	return &StoreResolver{store: store}
}

// FirstName returns the owner's first name, or "" when unresolvable.
func (r *StoreResolver) FirstName(ctx context.Context, ownerID string) (string, error) {
	p, err := r.store.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}

	if name := strings.TrimSpace(p.FirstName); name != "" {
		return name, nil
	}

	return emailLocalPart(p.Email), nil
}

// emailLocalPart extracts the part of an email address before the "@".
func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:at]
}
