package profile

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned when no profile document exists for a UID.
// Absence is an expected outcome for freshly created or half-provisioned
// accounts; it is distinct from a store connectivity failure.
var ErrProfileNotFound = errors.New("profile not found")

// ErrDuplicateProfile is returned when a document already exists at the UID.
var ErrDuplicateProfile = errors.New("profile already exists")

// Store provides access to the profile documents. Implementations are backed
// by the deployment's document store.
type Store interface {
	// Get returns the profile for the given UID, or ErrProfileNotFound.
	Get(ctx context.Context, uid string) (*Profile, error)
	// Put creates the profile document keyed by p.UID.
	Put(ctx context.Context, p *Profile) error
	// Delete removes the profile document, or returns ErrProfileNotFound.
	Delete(ctx context.Context, uid string) error
	// List returns all profile documents ordered by creation time.
	List(ctx context.Context) ([]Profile, error)
}
