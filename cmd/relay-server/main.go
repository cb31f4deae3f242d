package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"assistant-relay/internal/config"
	"assistant-relay/internal/server"
)

func main() {
	var (
		envFile  string
		port     string
		provider string
	)
	root := &cobra.Command{
		Use:   "relay-server",
		Short: "HTTP relay between the chat widget and the hosted assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg := config.Load(files...)
			if port != "" {
				cfg.Port = port
			}
			if provider != "" {
				cfg.Provider = provider
			}
			config.SetupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			cfg.LogWarnings()
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVar(&envFile, "env-file", "", "env file to load instead of .env")
	root.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	root.Flags().StringVar(&provider, "provider", "", "assistant provider: openai or memory (overrides PROVIDER)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("relay-server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	s, err := server.NewServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.Provider).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		// in-flight /msg requests may be polling a run
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// shutdownGrace outlasts the deadline of an in-flight /msg request.
func shutdownGrace(cfg config.Config) time.Duration {
	return cfg.PollBudget() + server.MessageSlack + 5*time.Second
}
