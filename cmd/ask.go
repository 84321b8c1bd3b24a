package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entropy1208/halsaveda-copilot/internal/chat"
	"github.com/entropy1208/halsaveda-copilot/internal/client"
	"github.com/entropy1208/halsaveda-copilot/internal/config"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of sources to retrieve (0 uses the configured default)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	topK := cfg.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	c, err := client.New(cfg.ServerURL, cfg.RequestTimeout, logger)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	conversation, err := chat.New(c, logger,
		chat.WithPolicy(client.FixedPolicy(cfg.MaxRetries)),
		chat.WithBackoff(cfg.RetryBackoff),
		chat.WithTopK(topK),
	)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}

	question := strings.Join(args, " ")
	if !conversation.Submit(cmd.Context(), question) {
		return fmt.Errorf("question must not be empty")
	}

	msgs := conversation.Messages()
	last := msgs[len(msgs)-1]
	if last.Failed {
		return fmt.Errorf("%s", last.Content)
	}

	fmt.Println(last.Content)
	if block := chat.FormatSources(last.Sources); block != "" {
		fmt.Println()
		fmt.Println(block)
	}
	return nil
}
