package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace seeds deterministic chunk ids.
var chunkNamespace = uuid.MustParse("5f0c8f2e-8d7a-4a43-9d3c-2a1f4b7e6c91")

// Document is an uploaded piece of study material. Documents are immutable;
// a re-upload creates a new Document that supersedes the previous one.
type Document struct {
	ID           string
	OwnerID      string
	Filename     string
	ContentType  string
	RawText      string
	StorageKey   string
	SupersedesID string
	CreatedAt    time.Time
}

// Chunk is a bounded, overlapping substring of a document used as the unit of retrieval.
// CharStart and CharEnd are rune offsets into the document text, end exclusive.
type Chunk struct {
	ID            string
	DocumentID    string
	SequenceIndex int
	Text          string
	CharStart     int
	CharEnd       int
}

// Embedding is the vector of a chunk produced by one embedding model.
type Embedding struct {
	ChunkID string
	Vector  []float32
	ModelID string
}

// ScoredChunk is a retrieved chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// VectorMetadata travels with every vector in the index.
type VectorMetadata struct {
	DocumentID    string
	SequenceIndex int
	OwnerID       string
	ModelID       string
}

// VectorMatch is a raw hit from the vector index.
type VectorMatch struct {
	ChunkID  string
	Score    float32
	Metadata VectorMetadata
}

// VectorFilter narrows a vector query. Empty fields match everything.
type VectorFilter struct {
	OwnerID     string
	DocumentIDs []string
	ModelID     string
}

// Matches reports whether meta passes the filter.
func (f VectorFilter) Matches(meta VectorMetadata) bool {
	if f.OwnerID != "" && meta.OwnerID != f.OwnerID {
		return false
	}
	if f.ModelID != "" && meta.ModelID != f.ModelID {
		return false
	}
	if len(f.DocumentIDs) > 0 {
		for _, id := range f.DocumentIDs {
			if id == meta.DocumentID {
				return true
			}
		}
		return false
	}
	return true
}

// ChunkID returns the stable id of the chunk at sequenceIndex within documentID.
// Re-ingesting an unchanged document therefore reproduces the same ids.
func ChunkID(documentID string, sequenceIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s/%d", documentID, sequenceIndex))).String()
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.OwnerID == "" {
		return fmt.Errorf("document OwnerID is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}
	if d.SupersedesID == d.ID {
		return fmt.Errorf("document cannot supersede itself")
	}
	return nil
}
