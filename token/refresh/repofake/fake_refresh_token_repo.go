package refreshrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/taskhive/identity/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo mirrors the store's conditional-update semantics under
// a single mutex, which is enough for the one-winner guarantee in tests.
type FakeRefreshTokenRepo struct {
	tokens map[int64]*refresh.Token
	byFp   map[string]int64
	nextID int64
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[int64]*refresh.Token),
		byFp:   make(map[string]int64),
	}
}

func (tr *FakeRefreshTokenRepo) Insert(_ context.Context, token *refresh.Token) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.nextID++
	token.ID = tr.nextID
	cp := *token
	tr.tokens[token.ID] = &cp
	tr.byFp[token.Fingerprint] = token.ID
	return nil
}

func (tr *FakeRefreshTokenRepo) GetByFingerprint(_ context.Context, fingerprint string) (*refresh.Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	id, ok := tr.byFp[fingerprint]
	if !ok {
		return nil, refresh.ErrTokenInvalid
	}
	cp := *tr.tokens[id]
	return &cp, nil
}

func (tr *FakeRefreshTokenRepo) ConditionalRevoke(_ context.Context, id int64, at time.Time) (bool, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	token, ok := tr.tokens[id]
	if !ok || token.Revoked {
		return false, nil
	}
	token.Revoked = true
	revokedAt := at
	token.RevokedAt = &revokedAt
	return true, nil
}

func (tr *FakeRefreshTokenRepo) RevokeFamily(_ context.Context, familyID string, at time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var touched int64
	for _, token := range tr.tokens {
		if token.FamilyID == familyID && !token.Revoked {
			token.Revoked = true
			revokedAt := at
			token.RevokedAt = &revokedAt
			touched++
		}
	}
	return touched, nil
}

func (tr *FakeRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID int64, at time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var touched int64
	for _, token := range tr.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			revokedAt := at
			token.RevokedAt = &revokedAt
			touched++
		}
	}
	return touched, nil
}

func (tr *FakeRefreshTokenRepo) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var purged int64
	for id, token := range tr.tokens {
		if token.ExpiresAt.Before(before) {
			delete(tr.byFp, token.Fingerprint)
			delete(tr.tokens, id)
			purged++
		}
	}
	return purged, nil
}

func (tr *FakeRefreshTokenRepo) PurgeRevoked(_ context.Context, before time.Time) (int64, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var purged int64
	for id, token := range tr.tokens {
		if token.Revoked && token.RevokedAt != nil && token.RevokedAt.Before(before) {
			delete(tr.byFp, token.Fingerprint)
			delete(tr.tokens, id)
			purged++
		}
	}
	return purged, nil
}

// Family returns a snapshot of every token in a family, for assertions.
func (tr *FakeRefreshTokenRepo) Family(familyID string) []*refresh.Token {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var out []*refresh.Token
	for _, token := range tr.tokens {
		if token.FamilyID == familyID {
			cp := *token
			out = append(out, &cp)
		}
	}
	return out
}
