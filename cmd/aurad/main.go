package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/aura/internal/cli"
	"github.com/cloo-solutions/aura/internal/cli/admin"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "aurad",
		Short:        "Aura tutoring backend",
		Long:         "aurad serves the tutoring API, runs document ingest and inspects its configuration.",
		SilenceUsage: true,
	}
	cli.AddHelpJSONFlag(root)
	root.AddCommand(admin.ServeCmd(), admin.IngestCmd(), admin.ConfigCmd())
	return root
}

func main() {
	root := newRootCmd()

	// Bare "aurad" starts the server.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(root)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aurad:", err)
		os.Exit(1)
	}
}
