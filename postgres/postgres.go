// Package postgres implements the storage ports against PostgreSQL. All
// revocation paths are single conditional UPDATEs so concurrent rotations
// linearize in the database, not in process memory.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

// Open connects and pings the database.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[postgres.Open] sql.Open")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "[postgres.Open] ping")
	}
	return db, nil
}

const schema = `
create table if not exists accounts (
	id bigserial primary key,
	user_id bigint not null,
	provider text not null,
	identifier text not null,
	password_hash text not null,
	failures int not null default 0,
	locked boolean not null default false,
	lock_expires_at timestamptz,
	password_change_required boolean not null default false,
	active boolean not null default true,
	created_at timestamptz not null default now(),
	unique (provider, identifier)
);

create table if not exists refresh_tokens (
	id bigserial primary key,
	fingerprint text not null unique,
	user_id bigint not null,
	family_id uuid not null,
	issued_at timestamptz not null,
	expires_at timestamptz not null,
	revoked boolean not null default false,
	revoked_at timestamptz,
	ip text not null default '',
	user_agent text not null default ''
);
create index if not exists refresh_tokens_family_idx on refresh_tokens (family_id);
create index if not exists refresh_tokens_user_idx on refresh_tokens (user_id);

create table if not exists organizations (
	id bigserial primary key,
	name text not null,
	active boolean not null default true,
	created_at timestamptz not null default now()
);

create table if not exists memberships (
	id bigserial primary key,
	user_id bigint not null,
	organization_id bigint not null references organizations(id),
	role text not null,
	active boolean not null default true,
	joined_at timestamptz not null default now(),
	unique (user_id, organization_id)
);

create table if not exists login_attempts (
	id text primary key,
	account_id bigint,
	identifier text not null,
	outcome text not null,
	reason text not null default '',
	ip text not null default '',
	user_agent text not null default '',
	at timestamptz not null
);
`

// EnsureSchema creates the tables this service owns.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "[postgres.EnsureSchema] exec")
	}
	return nil
}
