package service

import (
	"github.com/cloo-solutions/aura/internal/domain"
)

// ChunkConfig controls how document text is windowed for retrieval.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig returns 500-character windows overlapping by 50.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    500,
		Overlap: 50,
	}
}

// Validate checks 0 <= Overlap < Size.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkOverlap
	}
	return nil
}

// ChunkText splits text into windows of cfg.Size characters advancing by
// cfg.Size-cfg.Overlap. Offsets count Unicode code points. The final window is
// truncated to the end of the text and always kept.
func ChunkText(documentID, text string, cfg ChunkConfig) ([]domain.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []domain.Chunk{}, nil
	}

	stride := cfg.Size - cfg.Overlap
	chunks := make([]domain.Chunk, 0, len(runes)/stride+1)
	for start := 0; ; start += stride {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:            domain.ChunkID(documentID, seq),
			DocumentID:    documentID,
			SequenceIndex: seq,
			Text:          string(runes[start:end]),
			CharStart:     start,
			CharEnd:       end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
