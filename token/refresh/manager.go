package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Manager issues and rotates refresh tokens. Each login starts a new family;
// rotation stays within the family and keeps at most one live token per
// family at any instant.
type Manager struct {
	repo     Repo
	tokenLen int
	expiry   time.Duration
	nowTime  func() time.Time
}

type ManagerOption func(*Manager)

func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithTokenLength(length int) ManagerOption {
	return func(m *Manager) {
		m.tokenLen = length
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:     repo,
		tokenLen: 32, // 256 bits
		expiry:   30 * 24 * time.Hour,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Issue creates a refresh token in a brand-new family. The returned raw value
// is the only copy ever transmitted in the clear.
func (m *Manager) Issue(ctx context.Context, userID int64, meta Metadata) (string, *Token, error) {
	return m.issue(ctx, userID, uuid.New().String(), meta)
}

// IssueFromFamily creates a refresh token within an existing family. Used by
// rotation so theft detection can act on the whole chain.
func (m *Manager) IssueFromFamily(ctx context.Context, userID int64, familyID string, meta Metadata) (string, *Token, error) {
	return m.issue(ctx, userID, familyID, meta)
}

func (m *Manager) issue(ctx context.Context, userID int64, familyID string, meta Metadata) (string, *Token, error) {
	tokenBytes := make([]byte, m.tokenLen)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, errors.Wrap(err, "[Manager.issue] rand.Read")
	}
	raw := hex.EncodeToString(tokenBytes)

	now := m.nowTime()
	token := &Token{
		Fingerprint: Fingerprint(raw),
		UserID:      userID,
		FamilyID:    familyID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.expiry),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	}
	if err := m.repo.Insert(ctx, token); err != nil {
		return "", nil, errors.Wrap(err, "[Manager.issue] Insert")
	}
	return raw, token, nil
}

// Rotate validates a presented raw token and exchanges it for a new one in
// the same family.
//
// Replaying an already-revoked token is the theft signal: the family has
// progressed past it, so every remaining token in the family is revoked and
// ErrTokenReused is surfaced, forcing a full re-login. That check runs before
// the expiry check. Two concurrent rotations of the same live token resolve
// through the store's conditional revoke: exactly one wins, the loser gets
// the reuse treatment.
func (m *Manager) Rotate(ctx context.Context, raw string, meta Metadata) (string, *Token, error) {
	stored, err := m.repo.GetByFingerprint(ctx, Fingerprint(raw))
	if errors.Is(err, ErrTokenInvalid) {
		return "", nil, ErrTokenInvalid
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Rotate] GetByFingerprint")
	}

	now := m.nowTime()

	if stored.Revoked {
		if _, err := m.repo.RevokeFamily(ctx, stored.FamilyID, now); err != nil {
			return "", nil, errors.Wrap(err, "[Manager.Rotate] RevokeFamily on reuse")
		}
		return "", nil, ErrTokenReused
	}

	if !now.Before(stored.ExpiresAt) {
		if _, err := m.repo.ConditionalRevoke(ctx, stored.ID, now); err != nil {
			return "", nil, errors.Wrap(err, "[Manager.Rotate] ConditionalRevoke expired")
		}
		return "", nil, ErrTokenExpired
	}

	won, err := m.repo.ConditionalRevoke(ctx, stored.ID, now)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Manager.Rotate] ConditionalRevoke")
	}
	if !won {
		// Lost the race against a concurrent rotation of the same token.
		if _, err := m.repo.RevokeFamily(ctx, stored.FamilyID, now); err != nil {
			return "", nil, errors.Wrap(err, "[Manager.Rotate] RevokeFamily on conflict")
		}
		return "", nil, ErrTokenReused
	}

	return m.IssueFromFamily(ctx, stored.UserID, stored.FamilyID, meta)
}

// Revoke invalidates the family of the presented token. Unknown tokens are a
// no-op so logout stays idempotent.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	stored, err := m.repo.GetByFingerprint(ctx, Fingerprint(raw))
	if errors.Is(err, ErrTokenInvalid) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Manager.Revoke] GetByFingerprint")
	}
	if _, err := m.repo.RevokeFamily(ctx, stored.FamilyID, m.nowTime()); err != nil {
		return errors.Wrap(err, "[Manager.Revoke] RevokeFamily")
	}
	return nil
}

// RevokeFamily invalidates every token in a family.
func (m *Manager) RevokeFamily(ctx context.Context, familyID string) error {
	if _, err := m.repo.RevokeFamily(ctx, familyID, m.nowTime()); err != nil {
		return errors.Wrap(err, "[Manager.RevokeFamily] RevokeFamily")
	}
	return nil
}

// RevokeAllForUser invalidates every token the user holds, across families.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID int64) error {
	if _, err := m.repo.RevokeAllForUser(ctx, userID, m.nowTime()); err != nil {
		return errors.Wrap(err, "[Manager.RevokeAllForUser] RevokeAllForUser")
	}
	return nil
}

// Purge removes rows past expiry and revoked rows older than the retention
// window. Housekeeping only; never called on the request path.
func (m *Manager) Purge(ctx context.Context, revokedRetention time.Duration) (int64, error) {
	now := m.nowTime()
	expired, err := m.repo.PurgeExpired(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.Purge] PurgeExpired")
	}
	revoked, err := m.repo.PurgeRevoked(ctx, now.Add(-revokedRetention))
	if err != nil {
		return expired, errors.Wrap(err, "[Manager.Purge] PurgeRevoked")
	}
	return expired + revoked, nil
}
