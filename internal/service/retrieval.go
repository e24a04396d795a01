package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

const (
	DefaultTopK     = 5
	MaxTopK         = 10
	DefaultMinScore = float32(0.25)
)

// VectorIndex wraps the external vector store.
type VectorIndex interface {
	Upsert(ctx context.Context, chunkID string, vector []float32, meta domain.VectorMetadata) error
	Query(ctx context.Context, vector []float32, k int, filter domain.VectorFilter) ([]domain.VectorMatch, error)
	ExistingIDs(ctx context.Context, chunkIDs []string, modelID string) (map[string]bool, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// ChunkRepository persists chunk text.
type ChunkRepository interface {
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error
	GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// RetrievalConfig configures ingestion and querying.
type RetrievalConfig struct {
	Chunk    ChunkConfig
	TopK     int
	MinScore float32
	Retry    RetryPolicy
}

// DefaultRetrievalConfig returns the stock chunking, k and threshold.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Chunk:    DefaultChunkConfig(),
		TopK:     DefaultTopK,
		MinScore: DefaultMinScore,
		Retry:    DefaultRetryPolicy(),
	}
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Embedded   int    `json:"embedded"`
	Skipped    int    `json:"skipped"`
}

// RetrievalService chunks and embeds documents and answers similarity queries.
type RetrievalService struct {
	embedder Embedder
	index    VectorIndex
	chunks   ChunkRepository
	cfg      RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedder Embedder, index VectorIndex, chunks ChunkRepository, cfg RetrievalConfig) (*RetrievalService, error) {
	if err := cfg.Chunk.Validate(); err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopK > MaxTopK {
		cfg.TopK = MaxTopK
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		cfg:      cfg,
	}, nil
}

// Ingest chunks the document, stores the chunks and embeds every chunk that
// has no vector for the active model yet. Re-running after a partial failure
// resumes where the previous run stopped.
func (s *RetrievalService) Ingest(ctx context.Context, doc *domain.Document) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Ingest", telemetry.SpanAttributes{
		UserID:     doc.OwnerID,
		DocumentID: doc.ID,
		Operation:  "ingest",
	})
	defer span.End()

	chunks, err := ChunkText(doc.ID, doc.RawText, s.cfg.Chunk)
	if err != nil {
		return nil, err
	}

	if err := s.chunks.SaveChunks(ctx, chunks); err != nil {
		return nil, domain.ErrStorageOperationFail.WithCause(fmt.Errorf("save chunks: %w", err))
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	modelID := s.embedder.ModelID()
	var existing map[string]bool
	err = s.cfg.Retry.do(ctx, func(ctx context.Context) error {
		var qerr error
		existing, qerr = s.index.ExistingIDs(ctx, ids, modelID)
		return qerr
	})
	if err != nil {
		return nil, domain.ErrVectorIndexUnavailable.WithCause(err)
	}

	result := &IngestResult{DocumentID: doc.ID, Chunks: len(chunks)}
	for _, c := range chunks {
		if existing[c.ID] {
			result.Skipped++
			continue
		}

		vector, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return result, err
		}

		meta := domain.VectorMetadata{
			DocumentID:    c.DocumentID,
			SequenceIndex: c.SequenceIndex,
			OwnerID:       doc.OwnerID,
			ModelID:       modelID,
		}
		err = s.cfg.Retry.do(ctx, func(ctx context.Context) error {
			return s.index.Upsert(ctx, c.ID, vector, meta)
		})
		if err != nil {
			return result, domain.ErrVectorIndexUnavailable.WithCause(err)
		}
		result.Embedded++
	}

	if doc.SupersedesID != "" {
		if err := s.DeleteDocument(ctx, doc.SupersedesID); err != nil {
			return result, fmt.Errorf("remove superseded document %s: %w", doc.SupersedesID, err)
		}
		log.Printf("Document %s superseded %s", doc.ID, doc.SupersedesID)
	}

	return result, nil
}

// Retrieve returns at most k chunks most similar to queryText, best first.
// Ties are ordered by sequence index then document id. No match is an empty
// slice, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, queryText string, k int, filter domain.VectorFilter) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(queryText) == "" {
		return []domain.ScoredChunk{}, nil
	}
	if k <= 0 {
		k = s.cfg.TopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		UserID:    filter.OwnerID,
		Operation: "retrieve",
	})
	defer span.End()

	vector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	filter.ModelID = s.embedder.ModelID()

	// Over-fetch so equal scores straddling the k boundary still sort deterministically.
	var matches []domain.VectorMatch
	err = s.cfg.Retry.do(ctx, func(ctx context.Context) error {
		var qerr error
		matches, qerr = s.index.Query(ctx, vector, k*2, filter)
		return qerr
	})
	if err != nil {
		return nil, domain.ErrVectorIndexUnavailable.WithCause(err)
	}

	kept := make([]domain.VectorMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score >= s.cfg.MinScore {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	ids := make([]string, len(kept))
	for i, m := range kept {
		ids[i] = m.ChunkID
	}
	stored, err := s.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.ErrStorageOperationFail.WithCause(fmt.Errorf("load chunks: %w", err))
	}
	byID := make(map[string]domain.Chunk, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}

	results := make([]domain.ScoredChunk, 0, len(kept))
	for _, m := range kept {
		c, ok := byID[m.ChunkID]
		if !ok {
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: c, Score: m.Score})
	}

	SortScoredChunks(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteDocument removes the vectors and chunks of a document.
func (s *RetrievalService) DeleteDocument(ctx context.Context, documentID string) error {
	err := s.cfg.Retry.do(ctx, func(ctx context.Context) error {
		return s.index.DeleteByDocument(ctx, documentID)
	})
	if err != nil {
		return domain.ErrVectorIndexUnavailable.WithCause(err)
	}
	if err := s.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("delete chunks: %w", err))
	}
	return nil
}

// SortScoredChunks orders by score descending, then sequence index and
// document id ascending.
func SortScoredChunks(results []domain.ScoredChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.SequenceIndex != b.Chunk.SequenceIndex {
			return a.Chunk.SequenceIndex < b.Chunk.SequenceIndex
		}
		return a.Chunk.DocumentID < b.Chunk.DocumentID
	})
}
