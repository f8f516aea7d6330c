package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/taskhive/identity/accounts"
	"github.com/taskhive/identity/audit"
	"github.com/taskhive/identity/tenants"
	"github.com/taskhive/identity/token"
	"github.com/taskhive/identity/token/refresh"
)

// Origin is the caller-supplied request metadata recorded with every attempt.
type Origin struct {
	IP        string
	UserAgent string
}

// Throttle gates login attempts before credentials are checked. Allow reports
// whether the attempt may proceed; an error means the throttle backend itself
// failed, in which case the service fails open.
type Throttle interface {
	Allow(ctx context.Context, identifier, ip string) (bool, error)
}

// TokenPair is one access/refresh issuance.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is the successful login payload: the first token pair of a new
// family plus a summary of who logged in and where they belong.
type LoginResult struct {
	TokenPair
	UserID                 int64                 `json:"user_id"`
	PasswordChangeRequired bool                  `json:"password_change_required,omitempty"`
	Memberships            []*tenants.Membership `json:"memberships"`
}

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Accounts accounts.Repo
	Tenants  tenants.Repo
}

// Service composes credential verification, lockout, token issuance and
// refresh rotation into the login / refresh / logout flows.
type Service struct {
	repos    Repos
	verifier *accounts.Verifier
	lockout  *accounts.LockoutPolicy
	issuer   *token.Issuer
	refresh  *refresh.Manager
	recorder audit.Recorder
	throttle Throttle
	nowTime  func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithThrottle enables a pre-credential login throttle.
func WithThrottle(throttle Throttle) ServiceOption {
	return func(s *Service) {
		s.throttle = throttle
	}
}

// NewService initializes the session orchestrator with required dependencies.
func NewService(
	repos Repos,
	lockout *accounts.LockoutPolicy,
	issuer *token.Issuer,
	refreshManager *refresh.Manager,
	recorder audit.Recorder,
	options ...ServiceOption,
) (*Service, error) {
	if repos.Accounts == nil {
		return nil, errors.New("[NewService] Accounts repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.New("[NewService] Tenants repo is required")
	}
	if lockout == nil {
		return nil, errors.New("[NewService] lockout policy is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}
	if refreshManager == nil {
		return nil, errors.New("[NewService] refresh manager is required")
	}
	if recorder == nil {
		return nil, errors.New("[NewService] audit recorder is required")
	}

	s := &Service{
		repos:    repos,
		verifier: accounts.NewVerifier(repos.Accounts),
		lockout:  lockout,
		issuer:   issuer,
		refresh:  refreshManager,
		recorder: recorder,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login authenticates an email/password pair and, when it succeeds, starts a
// new refresh-token family.
func (s *Service) Login(ctx context.Context, identifier, password string, origin Origin) (*LoginResult, error) {
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, identifier, origin.IP)
		if err != nil {
			log.Warn().Err(err).Msg("login throttle unavailable, failing open")
		} else if !allowed {
			s.record(ctx, nil, identifier, audit.OutcomeThrottled, "rate limit", origin)
			return nil, ErrLoginThrottled
		}
	}

	verification, err := s.verifier.Verify(ctx, identifier, password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] Verify")
	}

	if verification.Outcome == accounts.OutcomeNotFound {
		s.record(ctx, nil, identifier, audit.OutcomeInvalidCredentials, "unknown identifier", origin)
		return nil, ErrInvalidCredentials
	}

	account := verification.Account

	// An active lock rejects even a correct credential and must not touch
	// the failure counter.
	if remaining, locked := s.lockout.Check(account); locked {
		s.record(ctx, &account.ID, identifier, audit.OutcomeLocked, "lock active", origin)
		return nil, &AccountLockedError{RetryAfter: remaining}
	}

	if verification.Outcome == accounts.OutcomeMismatch {
		if err := s.lockout.RecordFailure(ctx, account); err != nil {
			return nil, errors.Wrap(err, "[Service.Login] RecordFailure")
		}
		s.record(ctx, &account.ID, identifier, audit.OutcomeInvalidCredentials, "secret mismatch", origin)
		return nil, ErrInvalidCredentials
	}

	if err := s.lockout.RecordSuccess(ctx, account); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] RecordSuccess")
	}
	s.record(ctx, &account.ID, identifier, audit.OutcomeSuccess, "", origin)

	pair, err := s.issuePair(ctx, account.UserID, origin)
	if err != nil {
		return nil, err
	}

	memberships, err := s.repos.Tenants.MembershipsForUser(ctx, account.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] MembershipsForUser")
	}

	return &LoginResult{
		TokenPair:              *pair,
		UserID:                 account.UserID,
		PasswordChangeRequired: account.PasswordChangeRequired,
		Memberships:            memberships,
	}, nil
}

// Refresh rotates the presented refresh token and mints a fresh access token.
// Rotation failures pass through untouched: refresh.ErrTokenInvalid,
// refresh.ErrTokenExpired and refresh.ErrTokenReused are the caller's
// re-login signals.
func (s *Service) Refresh(ctx context.Context, rawToken string, origin Origin) (*TokenPair, error) {
	newRaw, stored, err := s.refresh.Rotate(ctx, rawToken, refresh.Metadata{IP: origin.IP, UserAgent: origin.UserAgent})
	if err != nil {
		return nil, err
	}

	accessToken, err := s.issuer.AccessToken(stored.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] AccessToken")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: newRaw}, nil
}

// Logout revokes the family of the presented refresh token. Unknown tokens
// are ignored so repeated logouts stay harmless.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if err := s.refresh.Revoke(ctx, rawToken); err != nil {
		return errors.Wrap(err, "[Service.Logout] Revoke")
	}
	return nil
}

// LogoutAll revokes every refresh token the user holds, across all devices.
func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		return errors.Wrap(err, "[Service.LogoutAll] RevokeAllForUser")
	}
	return nil
}

// issuePair mints an access token and the first refresh token of a new
// family. Rotation within an existing family goes through Manager.Rotate.
func (s *Service) issuePair(ctx context.Context, userID int64, origin Origin) (*TokenPair, error) {
	accessToken, err := s.issuer.AccessToken(userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issuePair] AccessToken")
	}

	rawRefresh, _, err := s.refresh.Issue(ctx, userID, refresh.Metadata{IP: origin.IP, UserAgent: origin.UserAgent})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issuePair] Issue")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: rawRefresh}, nil
}

// record writes the audit attempt; the trail is best-effort and never fails
// the login path.
func (s *Service) record(ctx context.Context, accountID *int64, identifier string, outcome audit.Outcome, reason string, origin Origin) {
	attempt := audit.NewAttempt(identifier, outcome)
	attempt.AccountID = accountID
	attempt.Reason = reason
	attempt.IP = origin.IP
	attempt.UserAgent = origin.UserAgent
	if err := s.recorder.Record(ctx, attempt); err != nil {
		log.Warn().Err(err).Str("outcome", string(outcome)).Msg("audit record failed")
	}
}
