// Package refresh implements stateful, family-tracked refresh tokens with
// rotation and reuse (theft) detection. Clients hold an opaque random value;
// the store only ever sees its fingerprint.
package refresh

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTokenInvalid means the presented value matches no stored token.
	ErrTokenInvalid = errors.New("invalid refresh token")
	// ErrTokenExpired means the token was found but is past its expiry.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrTokenReused means an already-rotated token was replayed. The whole
	// family is revoked before this is returned.
	ErrTokenReused = errors.New("refresh token reuse detected")
)

// Token is the server-side record of one issued refresh credential. Rotation
// inserts a new row in the same family; a row's fingerprint is never mutated.
// A token is live iff !Revoked && now < ExpiresAt.
type Token struct {
	ID          int64      `json:"id,omitempty"`
	Fingerprint string     `json:"-"` // sha256 of the raw value, hex
	UserID      int64      `json:"user_id"`
	FamilyID    string     `json:"family_id"` // stable across rotations from one login
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Revoked     bool       `json:"revoked,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	IP          string     `json:"ip,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
}

// Fingerprint computes the one-way digest under which a raw token value is
// stored. The raw value itself is never persisted.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Metadata is optional device/origin information captured at issuance.
type Metadata struct {
	IP        string
	UserAgent string
}
