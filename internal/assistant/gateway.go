package assistant

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// NoReplyFound is returned in place of a reply when the newest assistant
// entry is missing or carries no text part.
const NoReplyFound = "No reply found."

const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 30
)

type GatewayOptions struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	// CancelOnTimeout asks the provider to cancel a run that outlived the
	// polling budget. Off by default: abandoned runs expire on the
	// provider's schedule.
	CancelOnTimeout bool
}

// Gateway relays sessions and messages to a Provider and waits for runs to
// finish. It holds no per-session state.
type Gateway struct {
	provider Provider
	registry Registry
	opts     GatewayOptions

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

func NewGateway(provider Provider, registry Registry, opts GatewayOptions) *Gateway {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = DefaultPollMaxAttempts
	}
	return &Gateway{provider: provider, registry: registry, opts: opts, wait: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PollBudget is the longest SendMessage waits on a run.
func (g *Gateway) PollBudget() time.Duration {
	return g.opts.PollInterval * time.Duration(g.opts.PollMaxAttempts)
}

// CreateSession opens a new, empty thread for selector.
func (g *Gateway) CreateSession(ctx context.Context, selector string) (string, error) {
	assistantID, err := g.registry.Resolve(selector)
	if err != nil {
		return "", err
	}
	threadID, err := g.provider.CreateThread(ctx)
	if err != nil {
		return "", transportErr("create thread", err)
	}
	log.Info().Str("thread_id", threadID).Str("assistant_type", selector).Str("assistant_id", assistantID).Msg("created thread")
	return threadID, nil
}

// SendMessage appends content to the thread, runs the selected assistant and
// returns its reply.
func (g *Gateway) SendMessage(ctx context.Context, threadID, content, selector string) (string, error) {
	switch {
	case threadID == "":
		return "", &MissingFieldError{Field: "threadId"}
	case content == "":
		return "", &MissingFieldError{Field: "content"}
	case selector == "":
		return "", &MissingFieldError{Field: "assistantType"}
	}
	assistantID, err := g.registry.Resolve(selector)
	if err != nil {
		return "", err
	}
	logger := log.With().Str("thread_id", threadID).Str("assistant_type", selector).Logger()

	msgID, err := g.provider.AddUserMessage(ctx, threadID, content)
	if err != nil {
		return "", transportErr("add message", err)
	}
	logger.Debug().Str("message_id", msgID).Msg("user message added")

	job, err := g.provider.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return "", transportErr("start run", err)
	}
	logger = logger.With().Str("run_id", job.ID).Logger()
	logger.Info().Str("assistant_id", assistantID).Msg("run started")

	if err := g.awaitRun(ctx, threadID, job); err != nil {
		logger.Warn().Err(err).Msg("run did not complete")
		return "", err
	}

	history, err := g.provider.ListMessages(ctx, threadID)
	if err != nil {
		return "", transportErr("list messages", err)
	}
	reply := ExtractReply(history)
	logger.Info().Int("messages", len(history)).Bool("fallback", reply == NoReplyFound).Msg("assistant replied")
	return reply, nil
}

// awaitRun polls the run every PollInterval for at most PollMaxAttempts
// retrievals. A failed run aborts at once.
func (g *Gateway) awaitRun(ctx context.Context, threadID string, job Job) error {
	last := job
	for attempt := 1; attempt <= g.opts.PollMaxAttempts; attempt++ {
		if err := g.wait(ctx, g.opts.PollInterval); err != nil {
			return transportErr("poll run", err)
		}
		current, err := g.provider.RetrieveRun(ctx, threadID, job.ID)
		if err != nil {
			return transportErr("retrieve run", err)
		}
		last = current
		log.Debug().Str("run_id", job.ID).Int("attempt", attempt).Str("status", current.RawStatus).Msg("polled run")

		switch current.Status {
		case JobFailed:
			return &JobFailedError{JobID: job.ID, Detail: current.FailureDetail, Attempt: attempt}
		case JobCompleted:
			return nil
		}
	}

	if g.opts.CancelOnTimeout {
		// best effort; the timeout is reported either way
		if err := g.provider.CancelRun(context.WithoutCancel(ctx), threadID, job.ID); err != nil {
			log.Warn().Err(err).Str("run_id", job.ID).Msg("cancel after timeout failed")
		}
	}
	return &JobTimeoutError{JobID: job.ID, Attempts: g.opts.PollMaxAttempts, LastStatus: last.RawStatus}
}

// ExtractReply takes the first assistant entry of a newest-first history and
// returns the value of its first text part. Anything else yields NoReplyFound.
func ExtractReply(history []HistoryEntry) string {
	for _, entry := range history {
		if entry.Role != RoleAssistant {
			continue
		}
		for _, part := range entry.Content {
			if part.Type != ContentTypeText {
				continue
			}
			if part.Text == "" {
				return NoReplyFound
			}
			return part.Text
		}
		return NoReplyFound
	}
	return NoReplyFound
}
