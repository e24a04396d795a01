// Package huggingface calls the Hugging Face inference feature-extraction
// pipeline to embed text with sentence-transformers models.
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL    = "https://router.huggingface.co/hf-inference/models"
	DefaultModel      = "sentence-transformers/all-mpnet-base-v2"
	DefaultDimensions = 768
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	ErrNoAPIKey        = errors.New("HUGGINGFACE_API_KEY not set")
	ErrEmptyResponse   = errors.New("empty feature-extraction response")
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// Client embeds text through the inference API.
type Client struct {
	http       *resty.Client
	model      string
	dimensions int
}

// APIError is the error body returned by the inference API.
type APIError struct {
	Message string `json:"error"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("huggingface: %s (status %d)", e.Message, e.Status)
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.APIKey)

	return &Client{
		http:       client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (c *Client) ModelID() string {
	return c.model
}

func (c *Client) Dimension() int {
	return c.dimensions
}

// GenerateEmbedding returns the sentence embedding of text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"inputs": text}).
		Post("/" + escapeModel(c.model) + "/pipeline/feature-extraction")
	if err != nil {
		return nil, fmt.Errorf("feature-extraction request failed: %w", err)
	}

	if resp.StatusCode() >= 400 {
		apiErr := &APIError{Status: resp.StatusCode()}
		if jsonErr := json.Unmarshal(resp.Body(), apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return nil, apiErr
	}

	vector, err := decodeVector(resp.Body())
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(vector))
	}

	return vector, nil
}

// decodeVector accepts a pooled vector or per-token vectors, which are mean-pooled.
func decodeVector(body []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil {
		if len(flat) == 0 {
			return nil, ErrEmptyResponse
		}
		return flat, nil
	}

	var tokens [][]float32
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("decode feature-extraction response: %w", err)
	}
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, ErrEmptyResponse
	}

	pooled := make([]float32, len(tokens[0]))
	for _, tok := range tokens {
		if len(tok) != len(pooled) {
			return nil, fmt.Errorf("decode feature-extraction response: ragged token vectors")
		}
		for i, v := range tok {
			pooled[i] += v
		}
	}
	for i := range pooled {
		pooled[i] /= float32(len(tokens))
	}
	return pooled, nil
}

func escapeModel(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
