package accounts

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ProviderLocal tags accounts authenticated with an email/password credential
// held by this service. One Account exists per (user, provider) pair.
const ProviderLocal = "local"

// Account is a user's credential record for one provider. Accounts are never
// hard-deleted, only deactivated.
type Account struct {
	ID            int64      `json:"id,omitempty"`
	UserID        int64      `json:"user_id,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	Identifier    string     `json:"identifier,omitempty"` // email for the local provider
	PasswordHash  string     `json:"-"`                    // never serialize
	Failures      int        `json:"failures,omitempty"`   // consecutive failed logins
	Locked        bool       `json:"locked,omitempty"`
	LockExpiresAt *time.Time `json:"lock_expires_at,omitempty"`

	PasswordChangeRequired bool      `json:"password_change_required,omitempty"`
	Active                 bool      `json:"active,omitempty"`
	CreatedAt              time.Time `json:"created_at,omitempty"`
}

// LockActive reports whether the account is locked as of now, and the
// remaining cool-down. A lock whose expiry has passed is no longer active;
// the counter reset happens lazily on the next successful authentication.
func (a *Account) LockActive(now time.Time) (time.Duration, bool) {
	if !a.Locked {
		return 0, false
	}
	if a.LockExpiresAt == nil {
		return 0, true // locked with no expiry, administrative lock
	}
	if now.Before(*a.LockExpiresAt) {
		return a.LockExpiresAt.Sub(now), true
	}
	return 0, false
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a raw password against a stored bcrypt hash.
// bcrypt's comparison is constant-time with respect to the digest.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
