package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assistant-relay/internal/db"
)

// Exchange outcomes
const (
	OutcomeReplied  = "replied"
	OutcomeFallback = "fallback"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Exchange is one send-message round trip as seen by the gateway.
type Exchange struct {
	ID            string
	ThreadID      string
	AssistantType string
	Content       string
	Reply         string
	Outcome       string
	Error         string
	Duration      time.Duration
}

// DatabaseStore records sessions and exchanges in PostgreSQL
type DatabaseStore struct {
	db *db.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// RecordSession stores a newly created thread; repeated ids are ignored.
func (ds *DatabaseStore) RecordSession(ctx context.Context, threadID, assistantType string) error {
	if threadID == "" || assistantType == "" {
		return fmt.Errorf("thread_id and assistant_type are required")
	}

	query := `
		INSERT INTO sessions (thread_id, assistant_type, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (thread_id) DO NOTHING
	`
	if _, err := ds.db.ExecContext(ctx, query, threadID, assistantType); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// RecordExchange appends an exchange to the log and returns its id.
func (ds *DatabaseStore) RecordExchange(ctx context.Context, ex Exchange) (string, error) {
	if ex.ThreadID == "" {
		return "", fmt.Errorf("thread_id is required")
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}

	query := `
		INSERT INTO exchanges (id, thread_id, assistant_type, content, reply, outcome, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := ds.db.ExecContext(ctx, query,
		ex.ID,
		ex.ThreadID,
		ex.AssistantType,
		ex.Content,
		nullString(ex.Reply),
		ex.Outcome,
		nullString(ex.Error),
		ex.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record exchange: %w", err)
	}
	return ex.ID, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
