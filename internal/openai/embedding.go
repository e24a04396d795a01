package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEmbeddingModel      = openai.SmallEmbedding3
	DefaultEmbeddingDimensions = 1536
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	errNoEmbedding     = errors.New("no embedding data returned")
)

// EmbeddingAPI is the subset of the go-openai client used for embeddings.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config selects the embedding model. Zero values fall back to
// text-embedding-3-small at 1536 dimensions.
type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
}

// EmbeddingClient embeds study material chunks and learner questions through
// the OpenAI embeddings endpoint.
type EmbeddingClient struct {
	api        EmbeddingAPI
	model      openai.EmbeddingModel
	dimensions int
	// shorten asks the model to truncate its output; only the v3 models accept it.
	shorten bool
}

func NewClientWithConfig(cfg Config) *EmbeddingClient {
	return newEmbeddingClient(cfg, openai.NewClient(cfg.APIKey))
}

func newEmbeddingClient(cfg Config, api EmbeddingAPI) *EmbeddingClient {
	c := &EmbeddingClient{
		api:        api,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.EmbeddingDimensions,
	}
	if c.model == "" {
		c.model = DefaultEmbeddingModel
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	c.shorten = cfg.EmbeddingDimensions > 0 &&
		(c.model == openai.SmallEmbedding3 || c.model == openai.LargeEmbedding3)
	return c
}

func (c *EmbeddingClient) ModelID() string { return string(c.model) }

func (c *EmbeddingClient) Dimension() int { return c.dimensions }

// GenerateEmbedding returns the vector for text, rejecting responses whose
// length differs from the configured dimension.
func (c *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	}
	if c.shorten {
		req.Dimensions = c.dimensions
	}

	resp, err := c.api.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings (%s): %w", c.model, err)
	}
	if len(resp.Data) == 0 {
		return nil, errNoEmbedding
	}

	vec := resp.Data[0].Embedding
	if len(vec) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(vec))
	}
	return vec, nil
}
