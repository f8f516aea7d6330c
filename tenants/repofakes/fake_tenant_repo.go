package tenantrepofakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taskhive/identity/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	organizations map[int64]*tenants.Organization
	memberships   map[int64]*tenants.Membership
	nextOrgID     int64
	nextMemberID  int64
	lock          sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{
		organizations: make(map[int64]*tenants.Organization),
		memberships:   make(map[int64]*tenants.Membership),
	}
}

func (tr *FakeTenantRepo) UpsertOrganization(_ context.Context, org *tenants.Organization) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if org.ID == 0 {
		tr.nextOrgID++
		org.ID = tr.nextOrgID
	} else if org.ID > tr.nextOrgID {
		tr.nextOrgID = org.ID
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now()
	}
	cp := *org
	tr.organizations[org.ID] = &cp
	return nil
}

func (tr *FakeTenantRepo) GetOrganization(_ context.Context, id int64) (*tenants.Organization, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	org, ok := tr.organizations[id]
	if !ok {
		return nil, tenants.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (tr *FakeTenantRepo) CreateMembership(_ context.Context, membership *tenants.Membership) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if membership.ID == 0 {
		tr.nextMemberID++
		membership.ID = tr.nextMemberID
	} else if membership.ID > tr.nextMemberID {
		tr.nextMemberID = membership.ID
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}
	cp := *membership
	tr.memberships[membership.ID] = &cp
	return nil
}

func (tr *FakeTenantRepo) FindActiveMembership(_ context.Context, userID, organizationID int64) (*tenants.Membership, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	for _, m := range tr.memberships {
		if m.UserID == userID && m.OrganizationID == organizationID && m.Active {
			cp := *m
			return &cp, nil
		}
	}
	return nil, tenants.ErrNotFound
}

func (tr *FakeTenantRepo) FirstActiveMembership(ctx context.Context, userID int64) (*tenants.Membership, error) {
	memberships, err := tr.MembershipsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, tenants.ErrNotFound
	}
	return memberships[0], nil
}

func (tr *FakeTenantRepo) MembershipsForUser(_ context.Context, userID int64) ([]*tenants.Membership, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	memberships := make([]*tenants.Membership, 0)
	for _, m := range tr.memberships {
		if m.UserID == userID && m.Active {
			cp := *m
			memberships = append(memberships, &cp)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].JoinedAt.Before(memberships[j].JoinedAt)
	})
	return memberships, nil
}
