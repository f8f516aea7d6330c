package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskhive/identity/accounts"
)

var _ accounts.Repo = (*AccountRepo)(nil)

type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

const accountColumns = `id, user_id, provider, identifier, password_hash, failures, locked, lock_expires_at, password_change_required, active, created_at`

func (r *AccountRepo) Create(ctx context.Context, account *accounts.Account) error {
	return r.db.QueryRowContext(ctx,
		`insert into accounts (user_id, provider, identifier, password_hash, password_change_required, active)
		 values ($1, $2, $3, $4, $5, $6)
		 returning id, created_at`,
		account.UserID, account.Provider, account.Identifier, account.PasswordHash,
		account.PasswordChangeRequired, account.Active,
	).Scan(&account.ID, &account.CreatedAt)
}

func (r *AccountRepo) FindByID(ctx context.Context, id int64) (*accounts.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id = $1`, id)
	return scanAccount(row)
}

func (r *AccountRepo) FindByIdentifier(ctx context.Context, provider, identifier string) (*accounts.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where provider = $1 and identifier = $2`,
		provider, identifier)
	return scanAccount(row)
}

func (r *AccountRepo) IncrementFailureOrLock(ctx context.Context, id int64, threshold int, lockExpiresAt time.Time) (*accounts.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`update accounts set
			failures = failures + 1,
			locked = locked or failures + 1 >= $2,
			lock_expires_at = case when not locked and failures + 1 >= $2 then $3 else lock_expires_at end
		 where id = $1
		 returning `+accountColumns,
		id, threshold, lockExpiresAt)
	return scanAccount(row)
}

func (r *AccountRepo) ResetFailures(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`update accounts set failures = 0, locked = false, lock_expires_at = null where id = $1`, id)
	return err
}

func (r *AccountRepo) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`update accounts set active = false where id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*accounts.Account, error) {
	var (
		account       accounts.Account
		lockExpiresAt sql.NullTime
	)
	err := row.Scan(
		&account.ID, &account.UserID, &account.Provider, &account.Identifier,
		&account.PasswordHash, &account.Failures, &account.Locked, &lockExpiresAt,
		&account.PasswordChangeRequired, &account.Active, &account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lockExpiresAt.Valid {
		account.LockExpiresAt = &lockExpiresAt.Time
	}
	return &account, nil
}
