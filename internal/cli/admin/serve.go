package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/aura/internal/config"
	"github.com/cloo-solutions/aura/internal/database"
	"github.com/cloo-solutions/aura/internal/jobs"
	"github.com/cloo-solutions/aura/internal/server"
	"github.com/cloo-solutions/aura/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the Aura API server together with the ingest worker and the notification queue",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides AURA_PORT)")
	addStoreFlags(cmd)

	return cmd
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")
}

func buildOptions(cmd *cobra.Command) BuildOptions {
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	source, _ := cmd.Flags().GetString("migrations")
	return BuildOptions{NoMigrate: noMigrate, MigrationsSource: source}
}

// initTelemetry starts Sentry when a DSN is configured. The returned func is
// always safe to call.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry(cfg)
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	app, err := BuildApp(ctx, cfg, buildOptions(cmd))
	if err != nil {
		return err
	}
	defer app.Close()

	app.notifications.Start()

	ingestWorker := jobs.NewWorker("ingest", app.IngestWorker(), cfg.IngestPollInterval)
	go ingestWorker.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(app.RouterConfig()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		log.Println("shutting down...")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server forced to shutdown: %w", err)
	}

	ingestWorker.Stop()

	if err := app.notifications.Stop(shutdownCtx); err != nil {
		log.Printf("notification queue did not drain: %v", err)
	}
	stats := app.notifications.Stats()
	log.Printf("notifications: %d delivered, %d failed, %d dropped", stats.Delivered, stats.Failed, stats.Dropped)

	if runErr == nil {
		log.Println("server exited")
	}
	return runErr
}
