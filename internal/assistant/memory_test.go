package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderCompletesAfterPolls(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider(0, 2, nil)

	threadID, err := m.CreateThread(ctx)
	require.NoError(t, err)
	_, err = m.AddUserMessage(ctx, threadID, "ping")
	require.NoError(t, err)

	job, err := m.StartRun(ctx, threadID, "asst_a")
	require.NoError(t, err)
	assert.Equal(t, "queued", job.RawStatus)

	for i := 0; i < 2; i++ {
		job, err = m.RetrieveRun(ctx, threadID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobRunning, job.Status)
	}
	job, err = m.RetrieveRun(ctx, threadID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, job.Status)

	history, err := m.ListMessages(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "[asst_a] ping", ExtractReply(history))
	assert.Equal(t, RoleUser, history[1].Role)
}

func TestMemoryProviderUnknownThread(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider(0, 0, nil)

	_, err := m.AddUserMessage(ctx, "thread_missing", "hi")
	assert.Error(t, err)
	_, err = m.StartRun(ctx, "thread_missing", "asst_a")
	assert.Error(t, err)
	_, err = m.ListMessages(ctx, "thread_missing")
	assert.Error(t, err)
}

func TestMemoryProviderTrimsHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider(3, 0, func(_, text string) string { return "re: " + text })
	threadID, err := m.CreateThread(ctx)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err = m.AddUserMessage(ctx, threadID, text)
		require.NoError(t, err)
	}
	job, err := m.StartRun(ctx, threadID, "asst_a")
	require.NoError(t, err)
	_, err = m.RetrieveRun(ctx, threadID, job.ID)
	require.NoError(t, err)

	history, err := m.ListMessages(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "re: three", ExtractReply(history))
	assert.Equal(t, "two", history[2].Content[0].Text)
}

func TestMemoryProviderCancel(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider(0, 5, nil)
	threadID, _ := m.CreateThread(ctx)
	job, err := m.StartRun(ctx, threadID, "asst_a")
	require.NoError(t, err)

	require.NoError(t, m.CancelRun(ctx, threadID, job.ID))
	job, err = m.RetrieveRun(ctx, threadID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, job.Status)

	assert.Error(t, m.CancelRun(ctx, "other", job.ID))
}

func TestMemoryProviderThroughGateway(t *testing.T) {
	m := NewMemoryProvider(40, 1, nil)
	g, waits := newTestGateway(m, GatewayOptions{})

	threadID, err := g.CreateSession(context.Background(), "automation")
	require.NoError(t, err)
	reply, err := g.SendMessage(context.Background(), threadID, "hello", "automation")
	require.NoError(t, err)
	assert.Equal(t, "[asst_automation] hello", reply)
	assert.Len(t, *waits, 2)
}
