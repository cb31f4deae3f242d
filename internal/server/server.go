package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"assistant-relay/internal/assistant"
	"assistant-relay/internal/config"
	"assistant-relay/internal/db"
	"assistant-relay/internal/store"
	"assistant-relay/internal/types"
)

const maxBodyBytes = 1 << 20

// MessageSlack is added to the poll budget to get the /msg deadline.
const MessageSlack = 30 * time.Second

// ExchangeRecorder receives the outcome of every session and message the
// server relays. DatabaseStore implements it.
type ExchangeRecorder interface {
	RecordSession(ctx context.Context, threadID, assistantType string) error
	RecordExchange(ctx context.Context, ex store.Exchange) (string, error)
}

type Server struct {
	router   *chi.Mux
	gateway  *assistant.Gateway
	cfg      config.Config
	database *db.DB
	recorder ExchangeRecorder
}

// NewServer wires the provider, selector table and optional exchange log
// described by cfg.
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	registry, err := assistant.RegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load assistants: %w", err)
	}
	configured := registry.Configured()
	if len(configured) == 0 {
		log.Warn().Msg("no assistant ids configured; every request will be rejected as an invalid assistant type")
	}
	for _, sel := range configured {
		log.Info().Str("assistant_type", string(sel)).Msg("assistant configured")
	}

	var provider assistant.Provider
	switch cfg.Provider {
	case "openai":
		provider = assistant.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case "memory":
		provider = assistant.NewMemoryProvider(40, 1, assistant.EchoResponder)
		log.Warn().Msg("using in-memory assistant provider; replies are echoes")
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	gateway := assistant.NewGateway(provider, registry, assistant.GatewayOptions{
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
		CancelOnTimeout: cfg.CancelOnTimeout,
	})

	var database *db.DB
	var recorder ExchangeRecorder
	if cfg.DatabaseURL != "" {
		database, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.RunMigrations(ctx, db.Migrations()); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("exchange log enabled")
		recorder = store.NewDatabaseStore(database)
	} else {
		log.Info().Msg("DB_URL not provided, exchange log disabled")
	}

	s := newServer(cfg, gateway, recorder)
	s.database = database
	return s, nil
}

func newServer(cfg config.Config, gateway *assistant.Gateway, recorder ExchangeRecorder) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		router:   r,
		gateway:  gateway,
		cfg:      cfg,
		recorder: recorder,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/thread", s.handleThread)
	s.router.Post("/msg", s.handleMessage)
}

func (s *Server) Router() http.Handler { return s.router }

// Close releases the exchange log connection, if any.
func (s *Server) Close() error {
	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.database != nil {
		if err := s.database.HealthCheck(r.Context()); err != nil {
			log.Warn().Err(err).Msg("database health check failed")
			status["database"] = "unavailable"
		}
	}
	s.writeJSON(w, http.StatusOK, status)
}

// POST /thread { assistantType } -> { threadId }
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	var req types.ThreadRequest
	if !s.decode(w, r, &req) {
		return
	}
	log.Debug().Str("assistant_type", req.AssistantType).Msg("thread requested")

	threadID, err := s.gateway.CreateSession(r.Context(), req.AssistantType)
	if err != nil {
		s.writeFailure(w, "Thread creation failed", err)
		return
	}

	if s.recorder != nil {
		if err := s.recorder.RecordSession(r.Context(), threadID, req.AssistantType); err != nil {
			log.Warn().Err(err).Str("thread_id", threadID).Msg("failed to record session")
		}
	}
	s.writeJSON(w, http.StatusOK, types.ThreadResponse{ThreadID: threadID})
}

// POST /msg { threadId, content, assistantType } -> { reply }
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req types.MessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	// The run is polled while the request is held open.
	ctx, cancel := context.WithTimeout(r.Context(), s.gateway.PollBudget()+MessageSlack)
	defer cancel()

	start := time.Now()
	reply, err := s.gateway.SendMessage(ctx, req.ThreadID, req.Content, req.AssistantType)
	s.record(r.Context(), req, reply, err, time.Since(start))
	if err != nil {
		log.Error().Err(err).
			Str("thread_id", req.ThreadID).
			Str("assistant_type", req.AssistantType).
			Msg("message handling failed")
		s.writeFailure(w, "Message processing failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.MessageResponse{Reply: reply})
}

func (s *Server) record(ctx context.Context, req types.MessageRequest, reply string, err error, d time.Duration) {
	if s.recorder == nil || req.ThreadID == "" {
		return
	}
	ex := store.Exchange{
		ThreadID:      req.ThreadID,
		AssistantType: req.AssistantType,
		Content:       req.Content,
		Reply:         reply,
		Duration:      d,
	}
	switch {
	case err == nil && reply == assistant.NoReplyFound:
		ex.Outcome = store.OutcomeFallback
	case err == nil:
		ex.Outcome = store.OutcomeReplied
	case assistant.IsClientError(err):
		ex.Outcome = store.OutcomeRejected
		ex.Error = err.Error()
	default:
		ex.Outcome = store.OutcomeFailed
		ex.Error = err.Error()
	}
	// the request context may already be done after a long poll
	if _, err := s.recorder.RecordExchange(context.WithoutCancel(ctx), ex); err != nil {
		log.Warn().Err(err).Str("thread_id", req.ThreadID).Msg("failed to record exchange")
	}
}

// decode reads a JSON body into v. An empty body decodes as the zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeFailure maps gateway errors: caller input is a 400 carrying the error
// text, everything else a 500 with the generic message and the details.
func (s *Server) writeFailure(w http.ResponseWriter, generic string, err error) {
	if assistant.IsClientError(err) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: generic, Details: err.Error()})
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
