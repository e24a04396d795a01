package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorIndexRepository stores chunk vectors in pgvector under a named index.
// Scores are cosine similarity, 1 - cosine distance.
type VectorIndexRepository struct {
	db        dbtx
	indexName string
}

func NewVectorIndexRepository(pool *pgxpool.Pool, indexName string) *VectorIndexRepository {
	return &VectorIndexRepository{db: pool, indexName: indexName}
}

func (r *VectorIndexRepository) Upsert(ctx context.Context, chunkID string, vector []float32, meta domain.VectorMetadata) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunk_embeddings (index_name, chunk_id, model_id, document_id, sequence_index, owner_id, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (index_name, chunk_id, model_id) DO UPDATE
		 SET document_id = EXCLUDED.document_id,
		     sequence_index = EXCLUDED.sequence_index,
		     owner_id = EXCLUDED.owner_id,
		     embedding = EXCLUDED.embedding`,
		r.indexName, chunkID, meta.ModelID, meta.DocumentID, meta.SequenceIndex, meta.OwnerID, pgvector.NewVector(vector),
	)
	return err
}

func (r *VectorIndexRepository) Query(ctx context.Context, vector []float32, k int, filter domain.VectorFilter) ([]domain.VectorMatch, error) {
	if k <= 0 {
		return []domain.VectorMatch{}, nil
	}

	args := []any{pgvector.NewVector(vector), r.indexName}
	where := []string{"index_name = $2"}
	if filter.ModelID != "" {
		args = append(args, filter.ModelID)
		where = append(where, fmt.Sprintf("model_id = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(filter.DocumentIDs) > 0 {
		args = append(args, filter.DocumentIDs)
		where = append(where, fmt.Sprintf("document_id = ANY($%d)", len(args)))
	}
	args = append(args, k)

	query := fmt.Sprintf(
		`SELECT chunk_id, document_id, sequence_index, owner_id, model_id,
		        1 - (embedding <=> $1) AS score
		 FROM chunk_embeddings
		 WHERE %s
		 ORDER BY embedding <=> $1, sequence_index, document_id
		 LIMIT $%d`,
		strings.Join(where, " AND "), len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.VectorMatch, 0, k)
	for rows.Next() {
		var m domain.VectorMatch
		var score float64
		if err := rows.Scan(&m.ChunkID, &m.Metadata.DocumentID, &m.Metadata.SequenceIndex, &m.Metadata.OwnerID, &m.Metadata.ModelID, &score); err != nil {
			return nil, err
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *VectorIndexRepository) ExistingIDs(ctx context.Context, chunkIDs []string, modelID string) (map[string]bool, error) {
	existing := make(map[string]bool, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return existing, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT chunk_id FROM chunk_embeddings
		 WHERE index_name = $1 AND model_id = $2 AND chunk_id = ANY($3)`,
		r.indexName, modelID, chunkIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func (r *VectorIndexRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM chunk_embeddings WHERE index_name = $1 AND document_id = $2`,
		r.indexName, documentID,
	)
	return err
}
