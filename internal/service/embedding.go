package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Embedder turns text into a vector of a fixed dimension for one model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
	Dimension() int
}

// EmbeddingConfig configures the embedding adapter.
type EmbeddingConfig struct {
	ModelID           string
	Dimension         int
	CacheSize         int
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
	BaseBackoff       time.Duration
}

// DefaultEmbeddingConfig returns 3 attempts with a 200ms exponential base.
func DefaultEmbeddingConfig(modelID string, dimension int) EmbeddingConfig {
	return EmbeddingConfig{
		ModelID:           modelID,
		Dimension:         dimension,
		CacheSize:         1024,
		RequestsPerSecond: 10,
		Burst:             5,
		MaxAttempts:       3,
		BaseBackoff:       200 * time.Millisecond,
	}
}

var errDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingService wraps an EmbeddingClient with rate limiting, bounded
// retries, a dimension check and an LRU cache of recent vectors.
type EmbeddingService struct {
	client  EmbeddingClient
	cfg     EmbeddingConfig
	limiter *rate.Limiter

	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, cfg EmbeddingConfig) (*EmbeddingService, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("embedding model id is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than zero")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}

	s := &EmbeddingService{client: client, cfg: cfg}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

func (s *EmbeddingService) ModelID() string {
	return s.cfg.ModelID
}

func (s *EmbeddingService) Dimension() int {
	return s.cfg.Dimension
}

// Embed returns the vector of text. Transient client failures are retried with
// exponential backoff; exhaustion surfaces as ErrEmbeddingUnavailable.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.lookup(text); ok {
		return vec, nil
	}

	var vector []float32
	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxAttempts-1), retry.NewExponential(s.cfg.BaseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		vec, err := s.client.GenerateEmbedding(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		if len(vec) != s.cfg.Dimension {
			return fmt.Errorf("%w: model %s expected %d, got %d", errDimensionMismatch, s.cfg.ModelID, s.cfg.Dimension, len(vec))
		}

		vector = vec
		return nil
	})
	if err != nil {
		return nil, domain.ErrEmbeddingUnavailable.WithCause(err)
	}

	s.store(text, vector)
	return cloneVector(vector), nil
}

func (s *EmbeddingService) lookup(text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	vec, ok := s.cache.Get(text)
	if !ok {
		return nil, false
	}
	return cloneVector(vec), true
}

func (s *EmbeddingService) store(text string, vec []float32) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cache.Add(text, cloneVector(vec))
	s.cacheMu.Unlock()
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
