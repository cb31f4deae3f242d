package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"assistant-relay/internal/chatclient"
	"assistant-relay/internal/config"
	"assistant-relay/internal/store"
)

func main() {
	var (
		serverURL string
		selector  string
		stateFile string
		logLevel  string
		reset     bool
		timeout   time.Duration
	)
	root := &cobra.Command{
		Use:   "relay-chat",
		Short: "Terminal chat against a relay-server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.SetupLogging(logLevel, "console", cmd.ErrOrStderr())
			if stateFile == "" {
				stateFile = defaultStateFile()
			}
			client := chatclient.New(serverURL, selector, store.NewFileStore(stateFile))
			client.SetTimeout(timeout)
			if reset {
				if err := client.Reset(); err != nil {
					return err
				}
			}
			return chat(cmd.Context(), client, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.Flags().StringVar(&serverURL, "server", "http://localhost:4000", "relay-server base URL")
	root.Flags().StringVarP(&selector, "assistant", "a", "augment", "assistant type: augment or automation")
	root.Flags().StringVar(&stateFile, "state-file", "", "where the thread id is kept (default: user config dir)")
	root.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
	root.Flags().DurationVar(&timeout, "timeout", chatclient.DefaultTimeout, "per-request timeout; must exceed the server's poll budget plus 30s")
	root.Flags().BoolVar(&reset, "reset", false, "forget the stored thread and start a new one")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "assistant-relay", "chat.json")
}

// chat sends each non-empty input line and prints the reply. Input typed
// before the session exists gets the generic failure message.
func chat(ctx context.Context, client *chatclient.Client, in io.Reader, out io.Writer) error {
	if _, err := client.EnsureSession(ctx); err != nil {
		log.Error().Err(err).Msg("error creating thread")
		fmt.Fprintln(out, "Loading assistant failed; messages cannot be sent.")
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "you> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text != "" {
			fmt.Fprintf(out, "assistant> %s\n", client.Reply(ctx, text))
		}
		fmt.Fprint(out, "you> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
