package tenants

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Repo lookups when no row matches.
var ErrNotFound = errors.New("not found")

type Repo interface {
	UpsertOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id int64) (*Organization, error)

	CreateMembership(ctx context.Context, membership *Membership) error

	// FindActiveMembership returns the active membership for (user, org),
	// or ErrNotFound.
	FindActiveMembership(ctx context.Context, userID, organizationID int64) (*Membership, error)

	// FirstActiveMembership returns the user's active membership with the
	// earliest join time, or ErrNotFound.
	FirstActiveMembership(ctx context.Context, userID int64) (*Membership, error)

	// MembershipsForUser returns the user's active memberships ordered by
	// join time ascending.
	MembershipsForUser(ctx context.Context, userID int64) ([]*Membership, error)
}
