package types

type ThreadRequest struct {
	AssistantType string `json:"assistantType"`
}

type ThreadResponse struct {
	ThreadID string `json:"threadId"`
}

type MessageRequest struct {
	ThreadID      string `json:"threadId"`
	Content       string `json:"content"`
	AssistantType string `json:"assistantType"`
}

type MessageResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse carries Details only for provider-side failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
