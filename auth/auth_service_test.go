package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/identity/accounts"
	accountrepofakes "github.com/taskhive/identity/accounts/repofakes"
	"github.com/taskhive/identity/audit"
	auditrepofakes "github.com/taskhive/identity/audit/repofakes"
	"github.com/taskhive/identity/auth"
	"github.com/taskhive/identity/tenants"
	tenantrepofakes "github.com/taskhive/identity/tenants/repofakes"
	"github.com/taskhive/identity/token"
	"github.com/taskhive/identity/token/refresh"
	refreshrepofake "github.com/taskhive/identity/token/refresh/repofake"
)

const (
	testEmail    = "ana@example.com"
	testPassword = "correct-horse-battery"
	testUserID   = int64(42)
	threshold    = 5
	cooldown     = 15 * time.Minute
)

var testOrigin = auth.Origin{IP: "203.0.113.9", UserAgent: "tests"}

type serviceFixture struct {
	service     *auth.Service
	accountRepo *accountrepofakes.FakeAccountRepo
	tenantRepo  *tenantrepofakes.FakeTenantRepo
	refreshRepo *refreshrepofake.FakeRefreshTokenRepo
	recorder    *auditrepofakes.FakeRecorder
	issuer      *token.Issuer
	account     *accounts.Account
	now         time.Time
}

type blockedThrottle struct{}

func (blockedThrottle) Allow(context.Context, string, string) (bool, error) { return false, nil }

type brokenThrottle struct{}

func (brokenThrottle) Allow(context.Context, string, string) (bool, error) {
	return false, context.DeadlineExceeded
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *audit.Attempt) error {
	return errors.New("audit store down")
}

func setupServiceFixture(t *testing.T, options ...auth.ServiceOption) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		accountRepo: accountrepofakes.NewFakeAccountRepo(),
		tenantRepo:  tenantrepofakes.NewFakeTenantRepo(),
		refreshRepo: refreshrepofake.NewFakeRefreshTokenRepo(),
		recorder:    auditrepofakes.NewFakeRecorder(),
		now:         time.Now(),
	}
	ctx := context.Background()

	hash, err := accounts.HashPassword(testPassword)
	require.NoError(t, err)
	f.account = &accounts.Account{
		UserID:       testUserID,
		Provider:     accounts.ProviderLocal,
		Identifier:   testEmail,
		PasswordHash: hash,
		Active:       true,
	}
	require.NoError(t, f.accountRepo.Create(ctx, f.account))

	org := &tenants.Organization{Name: "Acme", Active: true}
	require.NoError(t, f.tenantRepo.UpsertOrganization(ctx, org))
	require.NoError(t, f.tenantRepo.CreateMembership(ctx, &tenants.Membership{
		UserID:         testUserID,
		OrganizationID: org.ID,
		Role:           tenants.RoleOwner,
		Active:         true,
	}))

	f.issuer = token.NewIssuer(token.NewHMACSigner("test-secret"))
	lockout := accounts.NewLockoutPolicy(f.accountRepo, threshold, cooldown,
		accounts.WithLockoutNowTime(func() time.Time { return f.now }))
	manager := refresh.NewManager(f.refreshRepo)

	f.service, err = auth.NewService(
		auth.Repos{Accounts: f.accountRepo, Tenants: f.tenantRepo},
		lockout, f.issuer, manager, f.recorder,
		options...,
	)
	require.NoError(t, err)
	return f
}

func (f *serviceFixture) failLogin(t *testing.T, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, err := f.service.Login(context.Background(), testEmail, "wrong", testOrigin)
		require.Error(t, err, "attempt %d", i)
	}
}

func lastAttempt(t *testing.T, recorder *auditrepofakes.FakeRecorder) *audit.Attempt {
	t.Helper()
	attempts := recorder.Attempts()
	require.NotEmpty(t, attempts)
	return attempts[len(attempts)-1]
}

func TestLoginSuccess(t *testing.T) {
	f := setupServiceFixture(t)

	result, err := f.service.Login(context.Background(), testEmail, testPassword, testOrigin)
	require.NoError(t, err)
	require.Equal(t, testUserID, result.UserID)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	require.Len(t, result.Memberships, 1)

	claims, err := f.issuer.Verify(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, claims.UserID)

	attempt := lastAttempt(t, f.recorder)
	require.Equal(t, audit.OutcomeSuccess, attempt.Outcome)
	require.Equal(t, testOrigin.IP, attempt.IP)
	require.NotNil(t, attempt.AccountID)
}

func TestLoginUnknownIdentifier(t *testing.T) {
	f := setupServiceFixture(t)

	_, err := f.service.Login(context.Background(), "nobody@example.com", testPassword, testOrigin)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	attempt := lastAttempt(t, f.recorder)
	require.Equal(t, audit.OutcomeInvalidCredentials, attempt.Outcome)
	require.Nil(t, attempt.AccountID)
}

func TestLoginWrongPassword(t *testing.T) {
	f := setupServiceFixture(t)

	_, err := f.service.Login(context.Background(), testEmail, "wrong", testOrigin)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	account, err := f.accountRepo.FindByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	require.Equal(t, 1, account.Failures)
}

func TestLoginLocksAfterThreshold(t *testing.T) {
	f := setupServiceFixture(t)
	f.failLogin(t, threshold)

	// The sixth attempt hits the lock, correct password or not.
	_, err := f.service.Login(context.Background(), testEmail, testPassword, testOrigin)
	var lockedErr *auth.AccountLockedError
	require.ErrorAs(t, err, &lockedErr)
	require.ErrorIs(t, err, auth.ErrAccountLocked)
	require.Greater(t, lockedErr.RetryAfter, time.Duration(0))

	attempt := lastAttempt(t, f.recorder)
	require.Equal(t, audit.OutcomeLocked, attempt.Outcome)
}

func TestCorrectPasswordDuringLockDoesNotResetCounter(t *testing.T) {
	f := setupServiceFixture(t)
	f.failLogin(t, threshold)

	_, err := f.service.Login(context.Background(), testEmail, testPassword, testOrigin)
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	account, err := f.accountRepo.FindByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	require.True(t, account.Locked)
	require.Equal(t, threshold, account.Failures)
}

func TestLoginSucceedsAfterCooldown(t *testing.T) {
	f := setupServiceFixture(t)
	f.failLogin(t, threshold)

	f.now = f.now.Add(cooldown + time.Second)
	result, err := f.service.Login(context.Background(), testEmail, testPassword, testOrigin)
	require.NoError(t, err)
	require.Equal(t, testUserID, result.UserID)

	account, err := f.accountRepo.FindByID(context.Background(), f.account.ID)
	require.NoError(t, err)
	require.False(t, account.Locked)
	require.Zero(t, account.Failures)
}

func TestLoginThrottled(t *testing.T) {
	f := setupServiceFixture(t, auth.WithThrottle(blockedThrottle{}))

	_, err := f.service.Login(context.Background(), testEmail, testPassword, testOrigin)
	require.ErrorIs(t, err, auth.ErrLoginThrottled)
	require.Equal(t, audit.OutcomeThrottled, lastAttempt(t, f.recorder).Outcome)
}

func TestThrottleBackendFailureFailsOpen(t *testing.T) {
	f := setupServiceFixture(t, auth.WithThrottle(brokenThrottle{}))

	result, err := f.service.Login(context.Background(), testEmail, testPassword, testOrigin)
	require.NoError(t, err)
	require.Equal(t, testUserID, result.UserID)
}

// The attempt trail is best-effort: a broken recorder must never change the
// outcome of a login.
func TestAuditFailureDoesNotAffectLogin(t *testing.T) {
	f := setupServiceFixture(t)
	lockout := accounts.NewLockoutPolicy(f.accountRepo, threshold, cooldown)
	manager := refresh.NewManager(f.refreshRepo)

	service, err := auth.NewService(
		auth.Repos{Accounts: f.accountRepo, Tenants: f.tenantRepo},
		lockout, f.issuer, manager, failingRecorder{},
	)
	require.NoError(t, err)

	result, err := service.Login(context.Background(), testEmail, testPassword, testOrigin)
	require.NoError(t, err)
	require.Equal(t, testUserID, result.UserID)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	// Failure paths keep their semantics too.
	_, err = service.Login(context.Background(), testEmail, "wrong", testOrigin)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestRefreshRotatesAndMintsAccessToken(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.Login(ctx, testEmail, testPassword, testOrigin)
	require.NoError(t, err)

	pair, err := f.service.Refresh(ctx, result.RefreshToken, testOrigin)
	require.NoError(t, err)
	require.NotEqual(t, result.RefreshToken, pair.RefreshToken)

	claims, err := f.issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, claims.UserID)
}

func TestRefreshErrorsPassThrough(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.Login(ctx, testEmail, testPassword, testOrigin)
	require.NoError(t, err)
	_, err = f.service.Refresh(ctx, result.RefreshToken, testOrigin)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, result.RefreshToken, testOrigin)
	require.ErrorIs(t, err, refresh.ErrTokenReused)

	_, err = f.service.Refresh(ctx, "garbage", testOrigin)
	require.ErrorIs(t, err, refresh.ErrTokenInvalid)
}

func TestLogoutKillsTheFamily(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.Login(ctx, testEmail, testPassword, testOrigin)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, result.RefreshToken))
	_, err = f.service.Refresh(ctx, result.RefreshToken, testOrigin)
	require.ErrorIs(t, err, refresh.ErrTokenReused)

	// Logout of an already-dead or unknown token stays quiet.
	require.NoError(t, f.service.Logout(ctx, result.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, "never-issued"))
}

func TestLogoutAllKillsEveryDevice(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	first, err := f.service.Login(ctx, testEmail, testPassword, testOrigin)
	require.NoError(t, err)
	second, err := f.service.Login(ctx, testEmail, testPassword, testOrigin)
	require.NoError(t, err)

	require.NoError(t, f.service.LogoutAll(ctx, testUserID))

	_, err = f.service.Refresh(ctx, first.RefreshToken, testOrigin)
	require.Error(t, err)
	_, err = f.service.Refresh(ctx, second.RefreshToken, testOrigin)
	require.Error(t, err)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	f := setupServiceFixture(t)
	lockout := accounts.NewLockoutPolicy(f.accountRepo, threshold, cooldown)
	manager := refresh.NewManager(f.refreshRepo)

	_, err := auth.NewService(auth.Repos{Tenants: f.tenantRepo}, lockout, f.issuer, manager, f.recorder)
	require.Error(t, err)

	_, err = auth.NewService(auth.Repos{Accounts: f.accountRepo, Tenants: f.tenantRepo}, nil, f.issuer, manager, f.recorder)
	require.Error(t, err)

	_, err = auth.NewService(auth.Repos{Accounts: f.accountRepo, Tenants: f.tenantRepo}, lockout, f.issuer, manager, nil)
	require.Error(t, err)
}
