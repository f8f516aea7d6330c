package refresh

import (
	"context"
	"time"
)

// Repo is the storage port for refresh tokens. Revocations are conditional
// updates so that concurrent rotations of the same row linearize into exactly
// one winner; implementations must push that atomicity into the store, not
// into in-process locks.
type Repo interface {
	// Insert stores a new token row and assigns its ID.
	Insert(ctx context.Context, token *Token) error

	// GetByFingerprint returns ErrTokenInvalid when no row matches.
	GetByFingerprint(ctx context.Context, fingerprint string) (*Token, error)

	// ConditionalRevoke marks the row revoked only if it is not already
	// revoked, reporting whether this call won the update.
	ConditionalRevoke(ctx context.Context, id int64, at time.Time) (bool, error)

	// RevokeFamily revokes every not-yet-revoked token in a family and
	// returns how many rows it touched.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error)

	// RevokeAllForUser revokes every live token the user holds, across all
	// families.
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error)

	// PurgeExpired deletes rows past their expiry.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)

	// PurgeRevoked deletes rows revoked before the given cutoff.
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}
