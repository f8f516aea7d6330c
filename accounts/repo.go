package accounts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Repo lookups when no account matches.
var ErrNotFound = errors.New("account not found")

// Repo is the storage port for credential accounts. Implementations must make
// IncrementFailureOrLock and ResetFailures single conditional updates; the
// lockout counter tolerates benign races but not lost locks.
type Repo interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByIdentifier(ctx context.Context, provider, identifier string) (*Account, error)

	// IncrementFailureOrLock adds one failed attempt and, when the counter
	// reaches threshold, sets the locked flag with the given expiry. It
	// returns the account as stored after the update.
	IncrementFailureOrLock(ctx context.Context, id int64, threshold int, lockExpiresAt time.Time) (*Account, error)

	// ResetFailures clears the failure counter and any lock.
	ResetFailures(ctx context.Context, id int64) error

	Deactivate(ctx context.Context, id int64) error
}
