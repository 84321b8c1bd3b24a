package cmd

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/entropy1208/halsaveda-copilot/internal/chat"
	"github.com/entropy1208/halsaveda-copilot/internal/client"
	"github.com/entropy1208/halsaveda-copilot/internal/config"
	"github.com/entropy1208/halsaveda-copilot/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	c, err := client.New(cfg.ServerURL, cfg.RequestTimeout, logger)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	conversation, err := chat.New(c, logger,
		chat.WithPolicy(client.FixedPolicy(cfg.MaxRetries)),
		chat.WithBackoff(cfg.RetryBackoff),
		chat.WithTopK(cfg.TopK),
	)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}

	ctx := cmd.Context()
	ui, err := tui.New(ctx, conversation, c)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}

	p := tea.NewProgram(ui, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
