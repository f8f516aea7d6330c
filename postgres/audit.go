package postgres

import (
	"context"
	"database/sql"

	"github.com/taskhive/identity/audit"
)

var _ audit.Recorder = (*AuditRecorder)(nil)

type AuditRecorder struct {
	db *sql.DB
}

func NewAuditRecorder(db *sql.DB) *AuditRecorder {
	return &AuditRecorder{db: db}
}

func (r *AuditRecorder) Record(ctx context.Context, attempt *audit.Attempt) error {
	_, err := r.db.ExecContext(ctx,
		`insert into login_attempts (id, account_id, identifier, outcome, reason, ip, user_agent, at)
		 values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		attempt.ID, attempt.AccountID, attempt.Identifier, string(attempt.Outcome),
		attempt.Reason, attempt.IP, attempt.UserAgent, attempt.At)
	return err
}
