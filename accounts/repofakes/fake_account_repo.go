package accountrepofakes

import (
	"context"
	"sync"
	"time"

	"github.com/taskhive/identity/accounts"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts map[int64]*accounts.Account
	nextID   int64
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[int64]*accounts.Account),
	}
}

func (ar *FakeAccountRepo) Create(_ context.Context, account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if account.ID == 0 {
		ar.nextID++
		account.ID = ar.nextID
	} else if account.ID > ar.nextID {
		ar.nextID = account.ID
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	cp := *account
	ar.accounts[account.ID] = &cp
	return nil
}

func (ar *FakeAccountRepo) FindByID(_ context.Context, id int64) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	account, ok := ar.accounts[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (ar *FakeAccountRepo) FindByIdentifier(_ context.Context, provider, identifier string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	for _, account := range ar.accounts {
		if account.Provider == provider && account.Identifier == identifier {
			cp := *account
			return &cp, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (ar *FakeAccountRepo) IncrementFailureOrLock(_ context.Context, id int64, threshold int, lockExpiresAt time.Time) (*accounts.Account, error) {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.accounts[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	account.Failures++
	if account.Failures >= threshold {
		account.Locked = true
		expiry := lockExpiresAt
		account.LockExpiresAt = &expiry
	}
	cp := *account
	return &cp, nil
}

func (ar *FakeAccountRepo) ResetFailures(_ context.Context, id int64) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.accounts[id]
	if !ok {
		return accounts.ErrNotFound
	}
	account.Failures = 0
	account.Locked = false
	account.LockExpiresAt = nil
	return nil
}

func (ar *FakeAccountRepo) Deactivate(_ context.Context, id int64) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.accounts[id]
	if !ok {
		return accounts.ErrNotFound
	}
	account.Active = false
	return nil
}
