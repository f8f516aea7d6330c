package tenants

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSelector means the tenant selector could not be parsed as an
	// organization id.
	ErrInvalidSelector = errors.New("invalid tenant selector")
	// ErrAccessDenied means the caller holds no active membership in the
	// selected organization. The caller is never silently redirected to
	// another tenant.
	ErrAccessDenied = errors.New("tenant access denied")
)

// Resolver derives the active organization for an authenticated caller,
// enforcing membership. It runs once per request, before business logic.
type Resolver struct {
	repo Repo
}

func NewResolver(repo Repo) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve picks the tenant for the request. With no selector the caller's
// earliest-joined ("home") organization wins; with no memberships at all the
// request proceeds without a tenant and (nil, nil) is returned. An explicit
// selector must name an organization the caller actively belongs to. A
// membership in a deactivated organization never resolves: the default path
// proceeds tenantless, an explicit selection of it is denied.
func (r *Resolver) Resolve(ctx context.Context, userID int64, selector string) (*Context, error) {
	if selector == "" {
		membership, err := r.repo.FirstActiveMembership(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "[Resolver.Resolve] FirstActiveMembership")
		}
		return r.contextFor(ctx, membership)
	}

	organizationID, err := strconv.ParseInt(selector, 10, 64)
	if err != nil || organizationID <= 0 {
		return nil, ErrInvalidSelector
	}

	membership, err := r.repo.FindActiveMembership(ctx, userID, organizationID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Resolver.Resolve] FindActiveMembership")
	}
	tc, err := r.contextFor(ctx, membership)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		return nil, ErrAccessDenied
	}
	return tc, nil
}

// contextFor loads the membership's organization and builds the request
// context. A missing or deactivated organization yields (nil, nil).
func (r *Resolver) contextFor(ctx context.Context, m *Membership) (*Context, error) {
	org, err := r.repo.GetOrganization(ctx, m.OrganizationID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Resolver.contextFor] GetOrganization")
	}
	if !org.Active {
		return nil, nil
	}
	return &Context{
		OrganizationID:   m.OrganizationID,
		OrganizationName: org.Name,
		UserID:           m.UserID,
		Role:             m.Role,
	}, nil
}
