package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Responder produces the assistant reply for the latest user message.
type Responder func(assistantID, userText string) string

// EchoResponder replies with the user's text.
func EchoResponder(assistantID, userText string) string {
	return fmt.Sprintf("[%s] %s", assistantID, userText)
}

type memoryRun struct {
	threadID    string
	assistantID string
	polls       int
	status      string
}

// MemoryProvider is an in-process Provider. Runs stay in_progress for
// completeAfter retrievals and then complete with the responder's reply.
type MemoryProvider struct {
	mu            sync.Mutex
	threads       map[string][]HistoryEntry
	runs          map[string]*memoryRun
	maxMessages   int
	completeAfter int
	respond       Responder
}

func NewMemoryProvider(maxMessages, completeAfter int, respond Responder) *MemoryProvider {
	if respond == nil {
		respond = EchoResponder
	}
	return &MemoryProvider{
		threads:       make(map[string][]HistoryEntry),
		runs:          make(map[string]*memoryRun),
		maxMessages:   maxMessages,
		completeAfter: completeAfter,
		respond:       respond,
	}
}

func (m *MemoryProvider) CreateThread(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "thread_" + uuid.NewString()
	m.threads[id] = nil
	return id, nil
}

func (m *MemoryProvider) AddUserMessage(ctx context.Context, threadID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return "", fmt.Errorf("no thread found with id '%s'", threadID)
	}
	id := "msg_" + uuid.NewString()
	m.appendLocked(threadID, HistoryEntry{
		ID:      id,
		Role:    RoleUser,
		Content: []ContentPart{{Type: ContentTypeText, Text: content}},
	})
	return id, nil
}

func (m *MemoryProvider) StartRun(ctx context.Context, threadID, assistantID string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[threadID]; !ok {
		return Job{}, fmt.Errorf("no thread found with id '%s'", threadID)
	}
	id := "run_" + uuid.NewString()
	run := &memoryRun{threadID: threadID, assistantID: assistantID, status: "queued"}
	m.runs[id] = run
	return m.jobLocked(id, run), nil
}

func (m *MemoryProvider) RetrieveRun(ctx context.Context, threadID, runID string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.threadID != threadID {
		return Job{}, fmt.Errorf("no run found with id '%s'", runID)
	}
	if run.status == "queued" || run.status == "in_progress" {
		run.polls++
		if run.polls > m.completeAfter {
			m.appendLocked(threadID, HistoryEntry{
				ID:      "msg_" + uuid.NewString(),
				Role:    RoleAssistant,
				Content: []ContentPart{{Type: ContentTypeText, Text: m.respond(run.assistantID, m.lastUserTextLocked(threadID))}},
			})
			run.status = "completed"
		} else {
			run.status = "in_progress"
		}
	}
	return m.jobLocked(runID, run), nil
}

func (m *MemoryProvider) CancelRun(ctx context.Context, threadID, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.threadID != threadID {
		return fmt.Errorf("no run found with id '%s'", runID)
	}
	if run.status != "completed" {
		run.status = "cancelled"
	}
	return nil
}

// ListMessages returns a copy of the history, newest first.
func (m *MemoryProvider) ListMessages(ctx context.Context, threadID string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("no thread found with id '%s'", threadID)
	}
	out := make([]HistoryEntry, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (m *MemoryProvider) appendLocked(threadID string, e HistoryEntry) {
	m.threads[threadID] = append(m.threads[threadID], e)
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.threads[threadID]
	if len(msgs) > m.maxMessages {
		m.threads[threadID] = msgs[len(msgs)-m.maxMessages:]
	}
}

func (m *MemoryProvider) lastUserTextLocked(threadID string) string {
	msgs := m.threads[threadID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != RoleUser {
			continue
		}
		for _, c := range msgs[i].Content {
			if c.Type == ContentTypeText {
				return c.Text
			}
		}
	}
	return ""
}

func (m *MemoryProvider) jobLocked(id string, run *memoryRun) Job {
	return Job{
		ID:        id,
		ThreadID:  run.threadID,
		Status:    NormalizeStatus(run.status),
		RawStatus: run.status,
	}
}
