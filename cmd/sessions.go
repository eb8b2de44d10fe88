package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiscogo/fisco/internal/app"
	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored conversations",
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the stored conversation for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Delete the stored conversation for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsClear,
}

func init() {
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sessionID, err := resolveSession(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	msgs, err := a.Pipeline.LoadHistory(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Println("no stored conversation for this session")
		return nil
	}

	for _, msg := range msgs {
		switch msg.Role {
		case chat.RoleSystem:
			// System prompts are noise in a transcript.
		case chat.RoleTool:
			fmt.Printf("[tool:%s] %s\n\n", msg.ToolName, msg.Content)
		default:
			fmt.Printf("[%s] %s\n\n", msg.Role, msg.Content)
		}
	}
	return nil
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sessionID, err := resolveSession(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Pipeline.ClearHistory(ctx, sessionID); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	fmt.Printf("session %s cleared\n", sessionID)
	return nil
}
