package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown identifiers and wrong
	// secrets; the two are deliberately indistinguishable so callers cannot
	// enumerate registered accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is the lockout rejection; the concrete error is an
	// *AccountLockedError carrying the remaining cool-down.
	ErrAccountLocked = errors.New("account locked")
	// ErrLoginThrottled is returned when the login throttle rejects the
	// attempt before credentials are even checked.
	ErrLoginThrottled = errors.New("login throttled")
)

// AccountLockedError tells the caller how long to wait before retrying.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
