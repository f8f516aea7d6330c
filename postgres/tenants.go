package postgres

import (
	"context"
	"database/sql"

	"github.com/taskhive/identity/tenants"
)

var _ tenants.Repo = (*TenantRepo)(nil)

type TenantRepo struct {
	db *sql.DB
}

func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) UpsertOrganization(ctx context.Context, org *tenants.Organization) error {
	if org.ID == 0 {
		return r.db.QueryRowContext(ctx,
			`insert into organizations (name, active) values ($1, $2) returning id, created_at`,
			org.Name, org.Active,
		).Scan(&org.ID, &org.CreatedAt)
	}
	_, err := r.db.ExecContext(ctx,
		`update organizations set name = $2, active = $3 where id = $1`,
		org.ID, org.Name, org.Active)
	return err
}

func (r *TenantRepo) GetOrganization(ctx context.Context, id int64) (*tenants.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`select id, name, active, created_at from organizations where id = $1`, id)

	var org tenants.Organization
	err := row.Scan(&org.ID, &org.Name, &org.Active, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, tenants.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *TenantRepo) CreateMembership(ctx context.Context, membership *tenants.Membership) error {
	return r.db.QueryRowContext(ctx,
		`insert into memberships (user_id, organization_id, role, active)
		 values ($1, $2, $3, $4)
		 returning id, joined_at`,
		membership.UserID, membership.OrganizationID, membership.Role, membership.Active,
	).Scan(&membership.ID, &membership.JoinedAt)
}

const membershipColumns = `id, user_id, organization_id, role, active, joined_at`

func (r *TenantRepo) FindActiveMembership(ctx context.Context, userID, organizationID int64) (*tenants.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+membershipColumns+` from memberships
		 where user_id = $1 and organization_id = $2 and active = true`,
		userID, organizationID)
	return scanMembership(row)
}

func (r *TenantRepo) FirstActiveMembership(ctx context.Context, userID int64) (*tenants.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+membershipColumns+` from memberships
		 where user_id = $1 and active = true
		 order by joined_at asc limit 1`, userID)
	return scanMembership(row)
}

func (r *TenantRepo) MembershipsForUser(ctx context.Context, userID int64) ([]*tenants.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`select `+membershipColumns+` from memberships
		 where user_id = $1 and active = true
		 order by joined_at asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]*tenants.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func scanMembership(row rowScanner) (*tenants.Membership, error) {
	var m tenants.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.Active, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, tenants.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
