package accounts

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// LockoutPolicy implements the per-account failed-login state machine:
// Unlocked -> (failures accumulate) -> Locked -> (cool-down passes) -> Unlocked.
type LockoutPolicy struct {
	repo      Repo
	threshold int
	cooldown  time.Duration
	nowTime   func() time.Time
}

type LockoutOption func(*LockoutPolicy)

// WithLockoutNowTime sets the now time function (primarily for testing).
func WithLockoutNowTime(nowFunc func() time.Time) LockoutOption {
	return func(p *LockoutPolicy) {
		p.nowTime = nowFunc
	}
}

func NewLockoutPolicy(repo Repo, threshold int, cooldown time.Duration, options ...LockoutOption) *LockoutPolicy {
	p := &LockoutPolicy{
		repo:      repo,
		threshold: threshold,
		cooldown:  cooldown,
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Check reports whether the account is under an active lock and how long the
// caller should wait. It never mutates the account; a lapsed lock is cleared
// by RecordSuccess.
func (p *LockoutPolicy) Check(account *Account) (time.Duration, bool) {
	return account.LockActive(p.nowTime())
}

// RecordFailure counts one failed attempt, locking the account when the
// configured threshold is reached.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, account *Account) error {
	lockExpiresAt := p.nowTime().Add(p.cooldown)
	if _, err := p.repo.IncrementFailureOrLock(ctx, account.ID, p.threshold, lockExpiresAt); err != nil {
		return errors.Wrap(err, "[LockoutPolicy.RecordFailure] IncrementFailureOrLock")
	}
	return nil
}

// RecordSuccess resets the failure counter and clears any lapsed lock.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, account *Account) error {
	if err := p.repo.ResetFailures(ctx, account.ID); err != nil {
		return errors.Wrap(err, "[LockoutPolicy.RecordSuccess] ResetFailures")
	}
	return nil
}
