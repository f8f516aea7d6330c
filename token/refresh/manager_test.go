package refresh_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/identity/token/refresh"
	refreshrepofake "github.com/taskhive/identity/token/refresh/repofake"
)

const testUserID int64 = 7

func newManager(repo refresh.Repo, now func() time.Time) *refresh.Manager {
	opts := []refresh.ManagerOption{refresh.WithExpiry(30 * 24 * time.Hour)}
	if now != nil {
		opts = append(opts, refresh.WithNowTime(now))
	}
	return refresh.NewManager(repo, opts...)
}

func activeCount(tokens []*refresh.Token) int {
	count := 0
	for _, tk := range tokens {
		if !tk.Revoked {
			count++
		}
	}
	return count
}

func TestRotationChainStaysInOneFamily(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	manager := newManager(repo, nil)
	ctx := context.Background()

	raw, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)

	// login -> rotate -> rotate -> rotate
	for i := 0; i < 3; i++ {
		var next *refresh.Token
		raw, next, err = manager.Rotate(ctx, raw, refresh.Metadata{})
		require.NoError(t, err)
		require.Equal(t, first.FamilyID, next.FamilyID)

		family := repo.Family(first.FamilyID)
		require.Equal(t, 1, activeCount(family), "exactly one live token after rotation %d", i+1)
	}

	family := repo.Family(first.FamilyID)
	require.Len(t, family, 4, "4 distinct rows for login + 3 rotations")
}

func TestRotateGarbageReturnsInvalid(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	manager := newManager(repo, nil)

	for _, raw := range []string{"", "garbage", "deadbeef"} {
		_, _, err := manager.Rotate(context.Background(), raw, refresh.Metadata{})
		require.ErrorIs(t, err, refresh.ErrTokenInvalid, "input %q", raw)
	}
}

func TestReuseRevokesWholeFamily(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	manager := newManager(repo, nil)
	ctx := context.Background()

	oldRaw, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)

	newRaw, _, err := manager.Rotate(ctx, oldRaw, refresh.Metadata{})
	require.NoError(t, err)

	// Replaying the rotated-away token is the theft signal.
	_, _, err = manager.Rotate(ctx, oldRaw, refresh.Metadata{})
	require.ErrorIs(t, err, refresh.ErrTokenReused)

	require.Equal(t, 0, activeCount(repo.Family(first.FamilyID)), "no live token survives reuse")

	// The descendant the attacker does not hold is dead too.
	_, _, err = manager.Rotate(ctx, newRaw, refresh.Metadata{})
	require.ErrorIs(t, err, refresh.ErrTokenReused)
}

func TestExpiredTokenRejectedAndRevoked(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	now := time.Now()
	manager := newManager(repo, func() time.Time { return now })
	ctx := context.Background()

	raw, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)

	now = now.Add(31 * 24 * time.Hour)
	_, _, err = manager.Rotate(ctx, raw, refresh.Metadata{})
	require.ErrorIs(t, err, refresh.ErrTokenExpired)

	family := repo.Family(first.FamilyID)
	require.Len(t, family, 1)
	require.True(t, family[0].Revoked)
}

func TestReuseCheckedBeforeExpiry(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	now := time.Now()
	manager := newManager(repo, func() time.Time { return now })
	ctx := context.Background()

	oldRaw, _, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)
	_, _, err = manager.Rotate(ctx, oldRaw, refresh.Metadata{})
	require.NoError(t, err)

	// Replay of a revoked token past its expiry is still a reuse signal,
	// not a plain expiry.
	now = now.Add(31 * 24 * time.Hour)
	_, _, err = manager.Rotate(ctx, oldRaw, refresh.Metadata{})
	require.ErrorIs(t, err, refresh.ErrTokenReused)
}

func TestConcurrentRotationHasExactlyOneWinner(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	manager := newManager(repo, nil)
	ctx := context.Background()

	raw, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)

	const rotators = 16
	var (
		wg        sync.WaitGroup
		successes int
		reuses    int
		lock      sync.Mutex
	)
	for i := 0; i < rotators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := manager.Rotate(ctx, raw, refresh.Metadata{})
			lock.Lock()
			defer lock.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, refresh.ErrTokenReused) || errors.Is(err, refresh.ErrTokenInvalid):
				reuses++
			default:
				t.Errorf("unexpected rotation error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "rotate succeeds at most once per issued token")
	require.Equal(t, rotators-1, reuses)
	// A losing racer revokes the family, so nothing may remain live.
	require.LessOrEqual(t, activeCount(repo.Family(first.FamilyID)), 1)
}

func TestLogoutRevokeIsIdempotent(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	manager := newManager(repo, nil)
	ctx := context.Background()

	raw, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, raw))
	require.Equal(t, 0, activeCount(repo.Family(first.FamilyID)))

	require.NoError(t, manager.Revoke(ctx, raw))
	require.NoError(t, manager.Revoke(ctx, "never-issued"))
}

func TestRevokeAllForUserSpansFamilies(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	manager := newManager(repo, nil)
	ctx := context.Background()

	_, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)
	_, second, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)
	otherRaw, _, err := manager.Issue(ctx, testUserID+1, refresh.Metadata{})
	require.NoError(t, err)

	require.NoError(t, manager.RevokeAllForUser(ctx, testUserID))
	require.Equal(t, 0, activeCount(repo.Family(first.FamilyID)))
	require.Equal(t, 0, activeCount(repo.Family(second.FamilyID)))

	// The other user's session is untouched.
	_, _, err = manager.Rotate(ctx, otherRaw, refresh.Metadata{})
	require.NoError(t, err)
}

func TestPurgeRemovesExpiredAndOldRevoked(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	now := time.Now()
	manager := newManager(repo, func() time.Time { return now })
	ctx := context.Background()

	raw, first, err := manager.Issue(ctx, testUserID, refresh.Metadata{})
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, raw))

	// Within retention nothing goes.
	purged, err := manager.Purge(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	require.Zero(t, purged)

	now = now.Add(91 * 24 * time.Hour)
	purged, err = manager.Purge(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
	require.Empty(t, repo.Family(first.FamilyID))
}
