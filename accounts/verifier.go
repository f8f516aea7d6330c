package accounts

import (
	"context"

	"github.com/pkg/errors"
)

// VerifyOutcome is the closed result set of a credential check. All three
// outcomes are ordinary results, not errors; a Verifier error means the
// store itself failed.
type VerifyOutcome int

const (
	OutcomeAuthenticated VerifyOutcome = iota
	OutcomeNotFound
	OutcomeMismatch
)

// Verification carries the outcome and, when the account exists, the record
// it matched. Account is set for both Authenticated and Mismatch so the
// caller can do its lockout bookkeeping.
type Verification struct {
	Outcome VerifyOutcome
	Account *Account
}

// Verifier checks an identifier/secret pair against the stored credential.
// It is deliberately side-effect-free; failure counting belongs to the
// LockoutPolicy and is driven by the caller.
type Verifier struct {
	repo Repo
}

func NewVerifier(repo Repo) *Verifier {
	return &Verifier{repo: repo}
}

func (v *Verifier) Verify(ctx context.Context, identifier, secret string) (Verification, error) {
	account, err := v.repo.FindByIdentifier(ctx, ProviderLocal, identifier)
	if errors.Is(err, ErrNotFound) {
		return Verification{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Verification{}, errors.Wrap(err, "[Verifier.Verify] FindByIdentifier")
	}

	if !account.Active {
		// Deactivated accounts are indistinguishable from unknown ones.
		return Verification{Outcome: OutcomeNotFound}, nil
	}

	if !CheckPasswordHash(secret, account.PasswordHash) {
		return Verification{Outcome: OutcomeMismatch, Account: account}, nil
	}
	return Verification{Outcome: OutcomeAuthenticated, Account: account}, nil
}
