package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/pagination"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndex_QueryOrdersAndFilters(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}, domain.VectorMetadata{DocumentID: "d1", SequenceIndex: 1, OwnerID: "u1", ModelID: "m"}))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{1, 0}, domain.VectorMetadata{DocumentID: "d1", SequenceIndex: 0, OwnerID: "u1", ModelID: "m"}))
	require.NoError(t, idx.Upsert(ctx, "c", []float32{0, 1}, domain.VectorMetadata{DocumentID: "d2", SequenceIndex: 0, OwnerID: "u1", ModelID: "m"}))
	require.NoError(t, idx.Upsert(ctx, "d", []float32{1, 0}, domain.VectorMetadata{DocumentID: "d3", SequenceIndex: 0, OwnerID: "u2", ModelID: "m"}))

	matches, err := idx.Query(ctx, []float32{1, 0}, 10, domain.VectorFilter{OwnerID: "u1", ModelID: "m"})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "b", matches[0].ChunkID)
	assert.Equal(t, "a", matches[1].ChunkID)
	assert.Equal(t, "c", matches[2].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	matches, err = idx.Query(ctx, []float32{1, 0}, 10, domain.VectorFilter{DocumentIDs: []string{"d2"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].ChunkID)

	matches, err = idx.Query(ctx, []float32{1, 0}, 1, domain.VectorFilter{})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestVectorIndex_ModelsAreSeparate(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0}, domain.VectorMetadata{DocumentID: "d1", ModelID: "small"}))

	existing, err := idx.ExistingIDs(ctx, []string{"a", "b"}, "small")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, existing)

	existing, err = idx.ExistingIDs(ctx, []string{"a"}, "large")
	require.NoError(t, err)
	assert.Empty(t, existing)

	matches, err := idx.Query(ctx, []float32{1, 0}, 5, domain.VectorFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, idx.DeleteByDocument(ctx, "d1"))
	assert.Equal(t, 0, idx.Len())
}

func TestDocumentRepository_FindLatest(t *testing.T) {
	repo := NewDocumentRepository()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &domain.Document{ID: "d1", OwnerID: "u1", Filename: "a.txt", CreatedAt: t0}))
	require.NoError(t, repo.Create(ctx, &domain.Document{ID: "d2", OwnerID: "u1", Filename: "a.txt", CreatedAt: t0.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.Document{ID: "d3", OwnerID: "u2", Filename: "a.txt", CreatedAt: t0.Add(2 * time.Hour)}))

	latest, err := repo.FindLatestByOwnerAndFilename(ctx, "u1", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "d2", latest.ID)

	_, err = repo.FindLatestByOwnerAndFilename(ctx, "u1", "b.txt")
	assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))

	err = repo.Create(ctx, &domain.Document{ID: "d1"})
	assert.True(t, domain.HasCode(err, domain.ErrCodeAlreadyExists))
}

func TestIngestJobRepository_ClaimPending(t *testing.T) {
	repo := NewIngestJobRepository()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"j1", "j2", "j3"} {
		job := domain.NewIngestJob(id, "doc-"+id, domain.IngestJobStatusPending, 0, "", t0.Add(time.Duration(i)*time.Minute), nil)
		require.NoError(t, repo.Create(ctx, job))
	}

	claimed, err := repo.ClaimPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "j1", claimed[0].ID)
	assert.Equal(t, "j2", claimed[1].ID)
	assert.Equal(t, domain.IngestJobStatusProcessing, claimed[0].Status)

	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "j3", claimed[0].ID)

	require.NoError(t, repo.UpdateStatus(ctx, "j1", domain.IngestJobStatusCompleted, ""))
	require.NoError(t, repo.IncrementRetries(ctx, "j2"))

	job, err := repo.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.NotNil(t, job.ProcessedAt)

	job, err = repo.GetLatestByDocument(ctx, "doc-j2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), job.Retries)

	assert.True(t, errors.Is(repo.UpdateStatus(ctx, "missing", domain.IngestJobStatusFailed, "x"), domain.ErrIngestJobNotFound))
}

func TestMasteryRepository_VersionedSave(t *testing.T) {
	repo := NewMasteryRepository()
	ctx := context.Background()
	rec := domain.NewMasteryRecord("u1", "bio", domain.DefaultMasteryPolicy())

	require.NoError(t, repo.Save(ctx, rec, 0))
	assert.True(t, errors.Is(repo.Save(ctx, rec, 0), domain.ErrVersionConflict))
	require.NoError(t, repo.Save(ctx, rec, 1))

	stored, err := repo.Get(ctx, "u1", "bio")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, int64(0), rec.Version)
}

func TestMasteryRepository_CursorPagination(t *testing.T) {
	repo := NewMasteryRepository()
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	topics := []string{"a", "b", "c", "d", "e"}
	for i, topic := range topics {
		rec := domain.NewMasteryRecord("u1", topic, domain.DefaultMasteryPolicy())
		rec.UpdatedAt = t0.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Save(ctx, rec, 0))
	}

	var seen []string
	var cursor *pagination.Cursor
	for page := 0; page < 5; page++ {
		result, err := repo.ListByUserWithCursor(ctx, "u1", cursor, 2)
		require.NoError(t, err)
		for _, rec := range result.Items {
			seen = append(seen, rec.TopicID)
		}
		if !result.HasMore {
			break
		}
		cursor, err = pagination.DecodeCursor(result.NextCursor)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, seen)
}

func TestConversationStore_CAS(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()
	session := &domain.ConversationSession{SessionID: "s1", UserID: "u1"}

	require.NoError(t, store.Save(ctx, session, 0))
	assert.True(t, errors.Is(store.Save(ctx, session, 0), domain.ErrVersionConflict))

	_, err := store.Get(ctx, "other")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

// keywordEmbedder counts a fixed vocabulary, enough to make similarity meaningful.
type keywordEmbedder struct{}

var vocabulary = []string{"cell", "planet", "atom"}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	return vec, nil
}

func (keywordEmbedder) ModelID() string { return "keyword" }
func (keywordEmbedder) Dimension() int  { return len(vocabulary) }

func TestStores_BackTheFullPipeline(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentRepository()
	jobs := NewIngestJobRepository()
	index := NewVectorIndex()
	chunks := NewChunkRepository()

	retrieval, err := service.NewRetrievalService(keywordEmbedder{}, index, chunks, service.DefaultRetrievalConfig())
	require.NoError(t, err)
	documents := service.NewDocumentService(docs, jobs, nil, retrieval, nil)

	bio, err := documents.Upload(ctx, service.UploadInput{OwnerID: "u1", Filename: "bio.txt", Text: "The cell membrane surrounds every cell."})
	require.NoError(t, err)
	astro, err := documents.Upload(ctx, service.UploadInput{OwnerID: "u1", Filename: "astro.txt", Text: "A planet orbits a star."})
	require.NoError(t, err)

	claimed, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, job := range claimed {
		_, err := documents.ProcessDocument(ctx, job.DocumentID)
		require.NoError(t, err)
	}

	results, err := retrieval.Retrieve(ctx, "what is a cell", 5, domain.VectorFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, bio.Document.ID, results[0].Chunk.DocumentID)
	assert.Len(t, chunks.ListByDocument(astro.Document.ID), 1)

	results, err = retrieval.Retrieve(ctx, "what is a cell", 5, domain.VectorFilter{OwnerID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIngestJobRepository_RejectsInvalidJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewIngestJobRepository()

	err := repo.Create(ctx, domain.NewIngestJob("j1", "", domain.IngestJobStatusPending, 0, "", time.Now(), nil))
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	require.NoError(t, repo.Create(ctx, domain.NewIngestJob("j2", "doc-2", domain.IngestJobStatusPending, 0, "", time.Now(), nil)))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "j2", "archived", ""), domain.ErrInvalidIngestStatus)

	job, err := repo.GetByID(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusPending, job.Status)
	assert.Nil(t, job.ProcessedAt)
}
