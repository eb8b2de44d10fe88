package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fiscogo/fisco/internal/app"
	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/config"
	"github.com/fiscogo/fisco/internal/pipeline"
	"github.com/fiscogo/fisco/internal/provider"
)

var (
	askStream  bool
	askSession string
	askUser    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the answer as it is generated")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id to continue (uuid, new session when empty)")
	askCmd.Flags().StringVar(&askUser, "user", "local", "user id recorded on usage events")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	sessionID, err := resolveSession(askSession)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	msgs, err := a.Pipeline.LoadHistory(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session history: %w", err)
	}
	msgs = append(msgs, chat.User(question))

	req := pipeline.Request{
		SessionID: sessionID,
		UserID:    askUser,
		Messages:  msgs,
	}

	var state *pipeline.State
	if askStream {
		state, err = a.Pipeline.RunStream(ctx, req, printChunk)
		fmt.Println()
	} else {
		state, err = a.Pipeline.Run(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	final := state.Final()
	if final.ErrorType != "" {
		return fmt.Errorf("request rejected (%s, status %d)", final.ErrorType, final.StatusCode)
	}
	if !askStream {
		fmt.Println(final.Content)
	}

	if askSession == "" {
		fmt.Fprintf(os.Stderr, "\nsession: %s (pass --session to continue)\n", sessionID)
	}
	return nil
}

func printChunk(_ context.Context, chunk provider.Chunk) error {
	if chunk.Done {
		return nil
	}
	_, err := fmt.Print(chunk.ContentDelta)
	return err
}

// resolveSession parses the --session flag, minting a new id when empty.
func resolveSession(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id %q: %w", raw, err)
	}
	return id, nil
}
