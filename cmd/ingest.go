package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/entropy1208/halsaveda-copilot/internal/app"
	"github.com/entropy1208/halsaveda-copilot/internal/config"
	"github.com/entropy1208/halsaveda-copilot/internal/index"
)

// maxIngestLine bounds a single JSONL record; chunks are paragraphs, not
// whole documents.
const maxIngestLine = 1 << 20

// ingestRecord is one line of the ingestion file.
type ingestRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.jsonl]",
	Short: "Load knowledge base chunks from a JSONL file",
	Long: `Load content chunks into the vector index.

Each line is a JSON object {"id", "title", "url", "text"}. Records without
an id get a generated one; records with a known id are replaced. Every
chunk is embedded before it is stored, so ingestion needs the same AI
provider credentials as serving.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("closing ingest file", "error", closeErr)
		}
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxIngestLine)

	var stored, skipped int
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec ingestRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if strings.TrimSpace(rec.Text) == "" {
			logger.Warn("skipping record without text", "line", lineNo, "id", rec.ID)
			skipped++
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		vector, err := a.GenAI.Embed(ctx, rec.Text)
		if err != nil {
			return fmt.Errorf("line %d: embedding: %w", lineNo, err)
		}

		chunk := index.Chunk{
			ID:        rec.ID,
			Title:     rec.Title,
			URL:       rec.URL,
			Content:   rec.Text,
			Embedding: vector,
		}
		if err := a.Index.Upsert(ctx, chunk); err != nil {
			return fmt.Errorf("line %d: storing: %w", lineNo, err)
		}
		stored++

		if stored%50 == 0 {
			logger.Info("ingestion progress", "stored", stored)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	total, err := a.Index.Count(ctx)
	if err != nil {
		logger.Warn("could not count chunks after ingest", "error", err)
	}

	logger.Info("ingestion complete", "stored", stored, "skipped", skipped, "total_chunks", total)
	fmt.Printf("Stored %d chunks (%d skipped), index now holds %d.\n", stored, skipped, total)
	return nil
}
