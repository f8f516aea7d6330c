package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/taskhive/identity/token/refresh"
)

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct {
	db *sql.DB
}

func NewRefreshTokenRepo(db *sql.DB) *RefreshTokenRepo {
	return &RefreshTokenRepo{db: db}
}

func (r *RefreshTokenRepo) Insert(ctx context.Context, token *refresh.Token) error {
	return r.db.QueryRowContext(ctx,
		`insert into refresh_tokens (fingerprint, user_id, family_id, issued_at, expires_at, ip, user_agent)
		 values ($1, $2, $3, $4, $5, $6, $7)
		 returning id`,
		token.Fingerprint, token.UserID, token.FamilyID, token.IssuedAt, token.ExpiresAt,
		token.IP, token.UserAgent,
	).Scan(&token.ID)
}

func (r *RefreshTokenRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*refresh.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`select id, fingerprint, user_id, family_id, issued_at, expires_at, revoked, revoked_at, ip, user_agent
		 from refresh_tokens where fingerprint = $1`, fingerprint)

	var (
		token     refresh.Token
		revokedAt sql.NullTime
	)
	err := row.Scan(
		&token.ID, &token.Fingerprint, &token.UserID, &token.FamilyID,
		&token.IssuedAt, &token.ExpiresAt, &token.Revoked, &revokedAt,
		&token.IP, &token.UserAgent,
	)
	if err == sql.ErrNoRows {
		return nil, refresh.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return &token, nil
}

// ConditionalRevoke relies on the WHERE clause for the one-winner guarantee:
// of two concurrent calls for the same row, exactly one sees rows-affected 1.
func (r *RefreshTokenRepo) ConditionalRevoke(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true, revoked_at = $2
		 where id = $1 and revoked = false`, id, at)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *RefreshTokenRepo) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true, revoked_at = $2
		 where family_id = $1 and revoked = false`, familyID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`update refresh_tokens set revoked = true, revoked_at = $2
		 where user_id = $1 and revoked = false`, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`delete from refresh_tokens where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RefreshTokenRepo) PurgeRevoked(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`delete from refresh_tokens where revoked = true and revoked_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
