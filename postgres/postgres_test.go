package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/identity/accounts"
	"github.com/taskhive/identity/postgres"
	"github.com/taskhive/identity/token/refresh"
)

func newMock(t *testing.T) (*postgres.RefreshTokenRepo, *postgres.AccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return postgres.NewRefreshTokenRepo(db), postgres.NewAccountRepo(db), mock
}

func TestConditionalRevokeWinner(t *testing.T) {
	repo, _, mock := newMock(t)
	at := time.Now()

	mock.ExpectExec(`update refresh_tokens set revoked = true`).
		WithArgs(int64(11), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.ConditionalRevoke(context.Background(), 11, at)
	require.NoError(t, err)
	require.True(t, won)
}

func TestConditionalRevokeLoser(t *testing.T) {
	repo, _, mock := newMock(t)
	at := time.Now()

	// Another rotation got there first, the WHERE clause matches nothing.
	mock.ExpectExec(`update refresh_tokens set revoked = true`).
		WithArgs(int64(11), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.ConditionalRevoke(context.Background(), 11, at)
	require.NoError(t, err)
	require.False(t, won)
}

func TestGetByFingerprintNotFound(t *testing.T) {
	repo, _, mock := newMock(t)

	mock.ExpectQuery(`select .+ from refresh_tokens where fingerprint`).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByFingerprint(context.Background(), "unknown")
	require.ErrorIs(t, err, refresh.ErrTokenInvalid)
}

func TestGetByFingerprintScansRevokedAt(t *testing.T) {
	repo, _, mock := newMock(t)
	issued := time.Now().Add(-time.Hour)
	revoked := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "fingerprint", "user_id", "family_id", "issued_at", "expires_at",
		"revoked", "revoked_at", "ip", "user_agent",
	}).AddRow(int64(5), "fp", int64(42), "family-1", issued, issued.Add(30*24*time.Hour),
		true, revoked, "203.0.113.9", "tests")

	mock.ExpectQuery(`select .+ from refresh_tokens where fingerprint`).
		WithArgs("fp").
		WillReturnRows(rows)

	tk, err := repo.GetByFingerprint(context.Background(), "fp")
	require.NoError(t, err)
	require.True(t, tk.Revoked)
	require.NotNil(t, tk.RevokedAt)
	require.Equal(t, "family-1", tk.FamilyID)
}

func TestRevokeFamilyReportsCount(t *testing.T) {
	repo, _, mock := newMock(t)
	at := time.Now()

	mock.ExpectExec(`update refresh_tokens set revoked = true`).
		WithArgs("family-1", at).
		WillReturnResult(sqlmock.NewResult(0, 4))

	revoked, err := repo.RevokeFamily(context.Background(), "family-1", at)
	require.NoError(t, err)
	require.EqualValues(t, 4, revoked)
}

func TestIncrementFailureOrLockReturnsUpdatedRow(t *testing.T) {
	_, repo, mock := newMock(t)
	lockExpiry := time.Now().Add(15 * time.Minute)
	created := time.Now().Add(-24 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "provider", "identifier", "password_hash", "failures",
		"locked", "lock_expires_at", "password_change_required", "active", "created_at",
	}).AddRow(int64(1), int64(42), "local", "ana@example.com", "hash", 5,
		true, lockExpiry, false, true, created)

	mock.ExpectQuery(`update accounts set`).
		WithArgs(int64(1), 5, lockExpiry).
		WillReturnRows(rows)

	account, err := repo.IncrementFailureOrLock(context.Background(), 1, 5, lockExpiry)
	require.NoError(t, err)
	require.True(t, account.Locked)
	require.Equal(t, 5, account.Failures)
	require.NotNil(t, account.LockExpiresAt)
}

func TestFindByIdentifierNotFound(t *testing.T) {
	_, repo, mock := newMock(t)

	mock.ExpectQuery(`select .+ from accounts where provider`).
		WithArgs("local", "nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByIdentifier(context.Background(), "local", "nobody@example.com")
	require.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestResetFailures(t *testing.T) {
	_, repo, mock := newMock(t)

	mock.ExpectExec(`update accounts set failures = 0`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResetFailures(context.Background(), 1))
}
