// Package memory holds in-process stores used when no database is configured
// and by tests that need real storage semantics without containers.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/aura/internal/domain"
)

type vectorKey struct {
	chunkID string
	modelID string
}

type vectorEntry struct {
	vector []float32
	meta   domain.VectorMetadata
}

// VectorIndex is a brute-force cosine index.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[vectorKey]vectorEntry
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[vectorKey]vectorEntry)}
}

func (v *VectorIndex) Upsert(ctx context.Context, chunkID string, vector []float32, meta domain.VectorMetadata) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[vectorKey{chunkID, meta.ModelID}] = vectorEntry{
		vector: append([]float32(nil), vector...),
		meta:   meta,
	}
	return nil
}

func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.VectorFilter) ([]domain.VectorMatch, error) {
	if k <= 0 {
		return []domain.VectorMatch{}, nil
	}

	v.mu.RLock()
	matches := make([]domain.VectorMatch, 0, len(v.entries))
	for key, entry := range v.entries {
		if !filter.Matches(entry.meta) || len(entry.vector) != len(vector) {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ChunkID:  key.chunkID,
			Score:    cosine(vector, entry.vector),
			Metadata: entry.meta,
		})
	}
	v.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metadata.SequenceIndex != b.Metadata.SequenceIndex {
			return a.Metadata.SequenceIndex < b.Metadata.SequenceIndex
		}
		return a.Metadata.DocumentID < b.Metadata.DocumentID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (v *VectorIndex) ExistingIDs(ctx context.Context, chunkIDs []string, modelID string) (map[string]bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	existing := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		if _, ok := v.entries[vectorKey{id, modelID}]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, entry := range v.entries {
		if entry.meta.DocumentID == documentID {
			delete(v.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
