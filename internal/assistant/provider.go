package assistant

import "context"

// Provider is the surface of the hosted assistant API the gateway needs.
// Implementations: OpenAIProvider (Assistants API) and MemoryProvider.
type Provider interface {
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, content string) (string, error)
	StartRun(ctx context.Context, threadID, assistantID string) (Job, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Job, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	// ListMessages returns the thread history newest first.
	ListMessages(ctx context.Context, threadID string) ([]HistoryEntry, error)
}

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
	JobUnknown   JobStatus = "unknown"
)

// Job is a remote run started against a thread.
type Job struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"threadId"`
	Status   JobStatus `json:"status"`
	// RawStatus is the provider's own status string, kept for diagnostics.
	RawStatus string `json:"rawStatus"`
	// FailureDetail is set when Status is JobFailed.
	FailureDetail string `json:"failureDetail,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const ContentTypeText = "text"

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type HistoryEntry struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// NormalizeStatus maps a provider run status onto JobStatus.
func NormalizeStatus(raw string) JobStatus {
	switch raw {
	case "queued", "in_progress", "requires_action", "cancelling":
		return JobRunning
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	case "cancelled", "expired":
		return JobCancelled
	default:
		return JobUnknown
	}
}
