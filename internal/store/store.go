// Package store defines the repository surface zonewarden uses to persist
// Zones and to resolve authentication principals, plus the backends that
// implement it.
package store

import (
	"context"
	"errors"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// ErrNotFound is returned by Get/GetByName/Update when no matching zone
// exists. The HTTP layer translates it to a 404.
var ErrNotFound = errors.New("store: zone not found")

// ErrAlreadyExists is returned by Create when a zone with the same name is
// already registered.
var ErrAlreadyExists = errors.New("store: zone already exists")

// ListOptions restricts and paginates ZoneRepository.List.
type ListOptions struct {
	// Account, if non-empty, restricts the listing to zones owned by it.
	Account string
	// Limit caps the number of zones returned. Zero means unbounded.
	Limit int
	// Cursor resumes a previous listing. Empty starts from the beginning.
	Cursor string
}

// ListResult is a page of zones plus the cursor to continue from.
type ListResult struct {
	Zones      []*zonemodel.Zone
	NextCursor string
}

// ZoneRepository persists Zones. Implementations store the Zone's
// connections exactly as given; encrypting the TSIG key before it reaches
// the repository, and decrypting it after Get, is the caller's
// responsibility (zonemodel.ZoneConnection.Encrypted/Decrypted).
type ZoneRepository interface {
	// Create persists a new zone, keyed by its ID. It returns
	// ErrAlreadyExists if a zone with the same Name is already registered.
	Create(ctx context.Context, zone *zonemodel.Zone) error
	// Get returns the zone with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*zonemodel.Zone, error)
	// GetByName returns the zone with the given Name, or ErrNotFound.
	GetByName(ctx context.Context, name string) (*zonemodel.Zone, error)
	// Update replaces the stored zone with the same ID, or returns
	// ErrNotFound if it does not exist.
	Update(ctx context.Context, zone *zonemodel.Zone) error
	// Delete removes the zone with the given ID. Deleting a zone that does
	// not exist is a no-op, not an error.
	Delete(ctx context.Context, id string) error
	// List returns a page of zones, optionally restricted to an account.
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	// Count returns the total number of zones tracked, for the zones-total
	// gauge.
	Count(ctx context.Context) (int, error)
}

// PrincipalStore persists the principals Authenticate resolves access keys
// against. It satisfies auth.AuthPrincipalProvider directly.
type PrincipalStore interface {
	auth.AuthPrincipalProvider

	// Put upserts a principal, keyed by AccessKey.
	Put(ctx context.Context, p *auth.Principal) error
	// Delete removes the principal with the given access key. Deleting one
	// that does not exist is a no-op.
	Delete(ctx context.Context, accessKey string) error
}
