// Package audit records authentication attempts for observability. The trail
// is write-only: nothing in the request path ever reads it back.
package audit

import (
	"context"
	"time"

	"github.com/taskhive/identity/internal/ids"
)

type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeLocked             Outcome = "locked"
	OutcomeThrottled          Outcome = "throttled"
)

// Attempt is one authentication attempt, success or failure.
type Attempt struct {
	ID         string    `json:"id"`
	AccountID  *int64    `json:"account_id,omitempty"` // nil when the identifier matched nothing
	Identifier string    `json:"identifier"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	At         time.Time `json:"at"`
}

// NewAttempt stamps an attempt with a sortable id and timestamp.
func NewAttempt(identifier string, outcome Outcome) *Attempt {
	return &Attempt{
		ID:         ids.New(),
		Identifier: identifier,
		Outcome:    outcome,
		At:         time.Now(),
	}
}

// Recorder is the storage port for the attempt trail.
type Recorder interface {
	Record(ctx context.Context, attempt *Attempt) error
}
