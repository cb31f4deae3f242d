package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssistantsAPI serves the handful of Assistants API routes the provider
// calls. Runs report in_progress once and then completed.
type fakeAssistantsAPI struct {
	mu         sync.Mutex
	created    []string
	posted     []map[string]any
	runPolls   int
	lastOrder  string
	cancelled  bool
	failDetail string
}

func (f *fakeAssistantsAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/threads", f.createThread)
	r.Post("/v1/threads/{threadID}/messages", f.createMessage)
	r.Get("/v1/threads/{threadID}/messages", f.listMessages)
	r.Post("/v1/threads/{threadID}/runs", f.createRun)
	r.Get("/v1/threads/{threadID}/runs/{runID}", f.retrieveRun)
	r.Post("/v1/threads/{threadID}/runs/{runID}/cancel", f.cancelRun)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAssistantsAPI) createThread(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.created = append(f.created, "thread_abc")
	f.mu.Unlock()
	writeJSON(w, map[string]any{"id": "thread_abc", "object": "thread", "created_at": 1700000000})
}

func (f *fakeAssistantsAPI) createMessage(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.posted = append(f.posted, body)
	f.mu.Unlock()
	writeJSON(w, map[string]any{
		"id":        "msg_user",
		"object":    "thread.message",
		"thread_id": chi.URLParam(r, "threadID"),
		"role":      "user",
		"content":   []any{map[string]any{"type": "text", "text": map[string]any{"value": body["content"], "annotations": []any{}}}},
	})
}

func (f *fakeAssistantsAPI) listMessages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastOrder = r.URL.Query().Get("order")
	f.mu.Unlock()
	writeJSON(w, map[string]any{
		"object": "list",
		"data": []any{
			map[string]any{
				"id":   "msg_reply",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "image_file", "image_file": map[string]any{"file_id": "file_1"}},
					map[string]any{"type": "text", "text": map[string]any{"value": "hi there", "annotations": []any{}}},
				},
			},
			map[string]any{
				"id":      "msg_user",
				"role":    "user",
				"content": []any{map[string]any{"type": "text", "text": map[string]any{"value": "hello", "annotations": []any{}}}},
			},
		},
		"first_id": "msg_reply",
		"last_id":  "msg_user",
		"has_more": false,
	})
}

func (f *fakeAssistantsAPI) createRun(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, map[string]any{
		"id":           "run_1",
		"object":       "thread.run",
		"thread_id":    chi.URLParam(r, "threadID"),
		"assistant_id": body["assistant_id"],
		"status":       "queued",
	})
}

func (f *fakeAssistantsAPI) retrieveRun(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.runPolls++
	polls := f.runPolls
	detail := f.failDetail
	f.mu.Unlock()

	run := map[string]any{"id": chi.URLParam(r, "runID"), "object": "thread.run", "status": "in_progress"}
	switch {
	case detail != "":
		run["status"] = "failed"
		run["last_error"] = map[string]any{"code": "server_error", "message": detail}
	case polls > 1:
		run["status"] = "completed"
	}
	writeJSON(w, run)
}

func (f *fakeAssistantsAPI) cancelRun(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
	writeJSON(w, map[string]any{"id": chi.URLParam(r, "runID"), "object": "thread.run", "status": "cancelling"})
}

func newFakeProvider(t *testing.T) (*OpenAIProvider, *fakeAssistantsAPI) {
	t.Helper()
	fake := &fakeAssistantsAPI{}
	srv := httptest.NewServer(fake.router())
	t.Cleanup(srv.Close)
	return NewOpenAIProvider("sk-test", srv.URL+"/v1"), fake
}

func TestOpenAIProviderThreadLifecycle(t *testing.T) {
	p, fake := newFakeProvider(t)
	ctx := context.Background()

	threadID, err := p.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", threadID)

	msgID, err := p.AddUserMessage(ctx, threadID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg_user", msgID)
	require.Len(t, fake.posted, 1)
	assert.Equal(t, "user", fake.posted[0]["role"])
	assert.Equal(t, "hello", fake.posted[0]["content"])

	job, err := p.StartRun(ctx, threadID, "asst_augment")
	require.NoError(t, err)
	assert.Equal(t, "run_1", job.ID)
	assert.Equal(t, JobRunning, job.Status)

	job, err = p.RetrieveRun(ctx, threadID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", job.RawStatus)
	job, err = p.RetrieveRun(ctx, threadID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, job.Status)

	history, err := p.ListMessages(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, "desc", fake.lastOrder)
	require.Len(t, history, 2)
	assert.Equal(t, RoleAssistant, history[0].Role)
	assert.Equal(t, "hi there", ExtractReply(history))
}

func TestOpenAIProviderFailedRun(t *testing.T) {
	p, fake := newFakeProvider(t)
	fake.failDetail = "quota exceeded"

	job, err := p.RetrieveRun(context.Background(), "thread_abc", "run_1")
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, "quota exceeded", job.FailureDetail)
}

func TestOpenAIProviderCancelRun(t *testing.T) {
	p, fake := newFakeProvider(t)
	require.NoError(t, p.CancelRun(context.Background(), "thread_abc", "run_1"))
	assert.True(t, fake.cancelled)
}

func TestOpenAIProviderThroughGateway(t *testing.T) {
	p, _ := newFakeProvider(t)
	g, _ := newTestGateway(p, GatewayOptions{PollMaxAttempts: 5})

	threadID, err := g.CreateSession(context.Background(), "augment")
	require.NoError(t, err)
	reply, err := g.SendMessage(context.Background(), threadID, "hello", "augment")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
}

func TestOpenAIProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	g, _ := newTestGateway(NewOpenAIProvider("bad", srv.URL+"/v1"), GatewayOptions{})
	_, err := g.CreateSession(context.Background(), "automation")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}
