package config

import (
	"strconv"
	"time"
)

type AuthConfig interface {
	GetLockoutThreshold() int
	GetLockoutCooldown() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetRevokedRetention() time.Duration
	GetJanitorInterval() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetLockoutThreshold returns the number of consecutive failed logins that
// locks an account.
func (Auth) GetLockoutThreshold() int {
	if v, err := strconv.Atoi(GetEnv("LOCKOUT_THRESHOLD", "5")); err == nil && v > 0 {
		return v
	}
	return 5
}

func (Auth) GetLockoutCooldown() time.Duration {
	return 15 * time.Minute
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Auth) GetRefreshTokenExpiry() time.Duration {
	return 30 * 24 * time.Hour // 30 days
}

func (Auth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

// GetRevokedRetention returns how long revoked refresh rows are kept for
// forensics before the janitor purges them.
func (Auth) GetRevokedRetention() time.Duration {
	return 90 * 24 * time.Hour
}

func (Auth) GetJanitorInterval() time.Duration {
	return time.Hour
}
