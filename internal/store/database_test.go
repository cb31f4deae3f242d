package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-relay/internal/db"
)

func TestRecordRequiresThreadID(t *testing.T) {
	ds := NewDatabaseStore(nil)

	assert.Error(t, ds.RecordSession(context.Background(), "", "augment"))
	assert.Error(t, ds.RecordSession(context.Background(), "thread_1", ""))
	_, err := ds.RecordExchange(context.Background(), Exchange{Outcome: OutcomeReplied})
	assert.Error(t, err)
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	ns := nullString("No reply found.")
	assert.True(t, ns.Valid)
	assert.Equal(t, "No reply found.", ns.String)
}

// Runs against a real database when DB_URL is set.
func TestDatabaseStorePostgres(t *testing.T) {
	url := os.Getenv("DB_URL")
	if url == "" {
		t.Skip("DB_URL not set")
	}
	ctx := context.Background()
	database, err := db.New(ctx, url)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.RunMigrations(ctx, db.Migrations()))

	ds := NewDatabaseStore(database)
	threadID := "thread_" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = database.ExecContext(ctx, `DELETE FROM exchanges WHERE thread_id = $1`, threadID)
		_, _ = database.ExecContext(ctx, `DELETE FROM sessions WHERE thread_id = $1`, threadID)
	})

	require.NoError(t, ds.RecordSession(ctx, threadID, "augment"))
	require.NoError(t, ds.RecordSession(ctx, threadID, "automation"))
	var assistantType string
	require.NoError(t, database.QueryRowContext(ctx,
		`SELECT assistant_type FROM sessions WHERE thread_id = $1`, threadID).Scan(&assistantType))
	assert.Equal(t, "augment", assistantType)

	id, err := ds.RecordExchange(ctx, Exchange{
		ThreadID:      threadID,
		AssistantType: "augment",
		Content:       "hello",
		Outcome:       OutcomeFailed,
		Error:         "Run failed: boom",
		Duration:      1500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var (
		outcome, content string
		reply, errText   *string
		durationMS       int64
	)
	require.NoError(t, database.QueryRowContext(ctx,
		`SELECT content, reply, outcome, error, duration_ms FROM exchanges WHERE id = $1`, id,
	).Scan(&content, &reply, &outcome, &errText, &durationMS))
	assert.Equal(t, "hello", content)
	assert.Nil(t, reply)
	assert.Equal(t, OutcomeFailed, outcome)
	require.NotNil(t, errText)
	assert.Equal(t, "Run failed: boom", *errText)
	assert.Equal(t, int64(1500), durationMS)
}
