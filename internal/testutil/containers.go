// Package testutil starts the backing services integration tests run against.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/aura/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	// RustFSCredential is both the access key and the secret of StartRustFS.
	RustFSCredential = "rustfsadmin"
)

// applicationTables lists every table TruncateAll empties, children first.
var applicationTables = []string{
	"chunk_embeddings",
	"ingest_jobs",
	"chunks",
	"documents",
	"quizzes",
	"mastery_records",
}

// NewTestPool starts a pgvector Postgres, applies the migrations in
// migrationsDir with the production migrator and returns a pool. The
// container and pool are released when t finishes.
func NewTestPool(ctx context.Context, t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	dir, err := filepath.Abs(migrationsDir)
	if err != nil {
		t.Fatalf("resolve migrations dir: %v", err)
	}

	ctr, err := postgres.Run(ctx, pgvectorImage,
		postgres.WithDatabase("aura"),
		postgres.WithUsername("aura"),
		postgres.WithPassword("aura"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}

	if err := database.Migrate(dsn, "file://"+dir); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: dsn, MaxConns: 5})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// StartRustFS runs an S3-compatible store and returns its endpoint URL.
func StartRustFS(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := testcontainers.Run(ctx, rustfsImage,
		testcontainers.WithExposedPorts("9000/tcp"),
		testcontainers.WithEnv(map[string]string{
			"RUSTFS_ACCESS_KEY": RustFSCredential,
			"RUSTFS_SECRET_KEY": RustFSCredential,
		}),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("9000/tcp").WithStartupTimeout(30*time.Second)),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start rustfs: %v", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "9000/tcp", "http")
	if err != nil {
		t.Fatalf("rustfs endpoint: %v", err)
	}
	return endpoint
}

// TruncateAll empties every application table.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range applicationTables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
