package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloo-solutions/aura/internal/config"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk and embed uploaded documents",
		Long: "Process one batch of pending ingest jobs and exit, or re-ingest a single " +
			"document with --document. Requires AURA_DATABASE_URL.",
		RunE: runIngest,
	}

	cmd.Flags().StringP("document", "d", "", "Document ID to re-ingest")
	addStoreFlags(cmd)

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("ingest needs AURA_DATABASE_URL: in-memory stores are private to the server process")
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	app, err := BuildApp(ctx, cfg, buildOptions(cmd))
	if err != nil {
		return err
	}
	defer app.Close()

	documentID, _ := cmd.Flags().GetString("document")
	if documentID == "" {
		return app.IngestWorker().ProcessJobs(ctx)
	}

	result, err := app.documents.ProcessDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", documentID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
