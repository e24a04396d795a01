package repository

import (
	"context"

	"github.com/cloo-solutions/aura/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ service.TxRunner = (*TxRunner)(nil)

// TxRunner runs upload bookkeeping (document row plus its first ingest job)
// in one Postgres transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise, including
// when fn panics.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Documents() service.DocumentRepository {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r txRepos) IngestJobs() service.IngestJobRepository {
	return NewIngestJobRepositoryWithTx(r.tx)
}
