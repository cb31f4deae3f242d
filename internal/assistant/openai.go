package assistant

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider on top of the OpenAI Assistants API
// (threads, messages and runs).
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a client for apiKey. An empty baseURL keeps the
// SDK default.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateThread(ctx context.Context) (string, error) {
	thread, err := p.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", err
	}
	if thread.ID == "" {
		return "", errors.New("provider returned an empty thread id")
	}
	return thread.ID, nil
}

func (p *OpenAIProvider) AddUserMessage(ctx context.Context, threadID, content string) (string, error) {
	msg, err := p.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    RoleUser,
		Content: content,
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *OpenAIProvider) StartRun(ctx context.Context, threadID, assistantID string) (Job, error) {
	run, err := p.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return Job{}, err
	}
	return jobFromRun(threadID, run), nil
}

func (p *OpenAIProvider) RetrieveRun(ctx context.Context, threadID, runID string) (Job, error) {
	run, err := p.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Job{}, err
	}
	return jobFromRun(threadID, run), nil
}

func (p *OpenAIProvider) CancelRun(ctx context.Context, threadID, runID string) error {
	_, err := p.client.CancelRun(ctx, threadID, runID)
	return err
}

func (p *OpenAIProvider) ListMessages(ctx context.Context, threadID string) ([]HistoryEntry, error) {
	order := "desc"
	list, err := p.client.ListMessage(ctx, threadID, nil, &order, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(list.Messages))
	for _, m := range list.Messages {
		entry := HistoryEntry{ID: m.ID, Role: m.Role}
		for _, c := range m.Content {
			part := ContentPart{Type: c.Type}
			if c.Text != nil {
				part.Text = c.Text.Value
			}
			entry.Content = append(entry.Content, part)
		}
		out = append(out, entry)
	}
	return out, nil
}

func jobFromRun(threadID string, run openai.Run) Job {
	raw := string(run.Status)
	job := Job{
		ID:        run.ID,
		ThreadID:  threadID,
		Status:    NormalizeStatus(raw),
		RawStatus: raw,
	}
	if run.LastError != nil {
		job.FailureDetail = run.LastError.Message
	}
	return job
}
