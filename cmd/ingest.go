package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CodeHalwell/digital-cv/internal/app"
	"github.com/CodeHalwell/digital-cv/internal/config"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load knowledge documents into the vector store",
	Long: `Ingest reads .txt and .md files from the knowledge directory, splits
them into overlapping chunks, embeds each chunk, and upserts the result into
the documents table. Re-running ingest after editing a file replaces its
chunks in place.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory to ingest (overrides config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ingestDir != "" {
		cfg.KnowledgeDir = ingestDir
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	processed, err := a.Ingest.IngestDirectory(ctx, cfg.KnowledgeDir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", cfg.KnowledgeDir, err)
	}

	count, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}

	fmt.Printf("Processed %d files; knowledge base now holds %d chunks\n", processed, count)
	return nil
}
