// Package chatclient is the client side of the relay: it caches the session
// id in durable storage and forwards user input to the gateway.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"assistant-relay/internal/store"
	"assistant-relay/internal/types"
)

// SessionKey is the storage key of the cached thread id.
const SessionKey = "threadId"

// FailureMessage is shown to the user in place of any error.
const FailureMessage = "Sorry, something went wrong."

// DefaultTimeout covers the gateway's default /msg deadline.
const DefaultTimeout = 90 * time.Second

var (
	ErrNotReady       = errors.New("session is not ready yet")
	ErrSessionPending = errors.New("session creation already in progress")
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("gateway returned %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	selector   string
	httpClient *http.Client
	storage    store.KeyValue

	mu       sync.Mutex
	threadID string
	creating bool
}

// New builds a client for the gateway at baseURL. selector is fixed for the
// client's lifetime.
func New(baseURL, selector string, storage store.KeyValue) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		selector: selector,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		storage:    storage,
	}
}

// SetTimeout bounds each gateway request. The gateway holds /msg open while
// it polls, so d must exceed its poll budget.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// SessionID returns the thread id once EnsureSession has succeeded.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// EnsureSession reuses the stored thread id or creates and stores a new one.
// The lock is not held while the gateway is called.
func (c *Client) EnsureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.threadID != "" {
		id := c.threadID
		c.mu.Unlock()
		return id, nil
	}
	if c.creating {
		c.mu.Unlock()
		return "", ErrSessionPending
	}
	stored, ok, err := c.storage.Get(SessionKey)
	if err != nil {
		c.mu.Unlock()
		return "", errors.Wrap(err, "read stored session")
	}
	if ok && stored != "" {
		log.Debug().Str("thread_id", stored).Msg("reusing stored thread")
		c.threadID = stored
		c.mu.Unlock()
		return stored, nil
	}
	c.creating = true
	c.mu.Unlock()

	threadID, err := c.createSession(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.creating = false
	if err != nil {
		return "", err
	}
	c.threadID = threadID
	return threadID, nil
}

func (c *Client) createSession(ctx context.Context) (string, error) {
	var resp types.ThreadResponse
	if err := c.post(ctx, "/thread", types.ThreadRequest{AssistantType: c.selector}, &resp); err != nil {
		return "", errors.Wrap(err, "create thread")
	}
	if resp.ThreadID == "" {
		return "", errors.New("create thread: gateway returned an empty thread id")
	}
	if err := c.storage.Set(SessionKey, resp.ThreadID); err != nil {
		return "", errors.Wrap(err, "store session")
	}
	log.Info().Str("thread_id", resp.ThreadID).Msg("created thread")
	return resp.ThreadID, nil
}

// Send relays text on the current session and returns the assistant reply.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	threadID := c.SessionID()
	if threadID == "" {
		return "", ErrNotReady
	}
	var resp types.MessageResponse
	err := c.post(ctx, "/msg", types.MessageRequest{
		ThreadID:      threadID,
		Content:       text,
		AssistantType: c.selector,
	}, &resp)
	if err != nil {
		return "", errors.Wrap(err, "send message")
	}
	return resp.Reply, nil
}

// Reply is Send for display: errors are logged and replaced by FailureMessage.
func (c *Client) Reply(ctx context.Context, text string) string {
	reply, err := c.Send(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("thread_id", c.SessionID()).Msg("error sending message")
		return FailureMessage
	}
	return reply
}

// Reset forgets the stored session so the next EnsureSession creates one.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadID = ""
	return c.storage.Delete(SessionKey)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er types.ErrorResponse
		if json.Unmarshal(b, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Details = er.Details
		} else {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
