package repository

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository persists chunk text. Vectors are kept by VectorIndexRepository.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

// SaveChunks upserts by chunk id in a single batch.
func (r *ChunkRepository) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, document_id, sequence_index, content, char_start, char_end)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE
			 SET content = EXCLUDED.content,
			     char_start = EXCLUDED.char_start,
			     char_end = EXCLUDED.char_end`,
			c.ID, c.DocumentID, c.SequenceIndex, c.Text, c.CharStart, c.CharEnd,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return []domain.Chunk{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, sequence_index, content, char_start, char_end
		 FROM chunks WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, len(ids))
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.SequenceIndex, &c.Text, &c.CharStart, &c.CharEnd); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}
