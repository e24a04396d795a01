package admin

import (
	"fmt"

	"github.com/cloo-solutions/aura/internal/config"
	"github.com/spf13/cobra"
)

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect server configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "env",
		Short: "List the environment variables the server reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Usage(cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate configuration from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration ok (environment %s)\n", cfg.Environment)
			fmt.Fprintf(out, "  database:   %s\n", enabled(cfg.HasDatabase()))
			fmt.Fprintf(out, "  redis:      %s\n", enabled(cfg.HasRedis()))
			fmt.Fprintf(out, "  s3:         %s\n", enabled(cfg.HasS3()))
			fmt.Fprintf(out, "  smtp:       %s\n", enabled(cfg.HasSMTP()))
			fmt.Fprintf(out, "  embeddings: %s\n", cfg.EmbeddingProvider)
			fmt.Fprintf(out, "  llm order:  %v\n", cfg.LLMProviders)
			return nil
		},
	})

	return cmd
}

func enabled(on bool) string {
	if on {
		return "configured"
	}
	return "not configured"
}
