package admin

import (
	"testing"

	"github.com/cloo-solutions/aura/internal/config"
	"github.com/cloo-solutions/aura/internal/huggingface"
	"github.com/cloo-solutions/aura/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		EmbeddingProvider:  "huggingface",
		EmbeddingModel:     huggingface.DefaultModel,
		EmbeddingDimension: huggingface.DefaultDimensions,
		LLMProviders:       []string{"gemini", "groq", "groq-gemma", "openrouter"},
		GeminiModel:        "gemini-2.5-flash",
		GroqLlamaModel:     "llama",
		GroqGemmaModel:     "gemma",
		OpenRouterModel:    "router-model",
		OpenAIChatModel:    "gpt-4o-mini",
	}
}

func TestChatConfigs_KeepsOrderAndSkipsMissingKeys(t *testing.T) {
	cfg := baseConfig()
	cfg.GroqAPIKey = "groq-key"
	cfg.OpenRouterAPIKey = "or-key"

	got, err := chatConfigs(cfg)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "groq", got[0].Name)
	assert.Equal(t, "llama", got[0].Model)
	assert.Equal(t, openai.GroqBaseURL, got[0].BaseURL)
	assert.Equal(t, "groq-gemma", got[1].Name)
	assert.Equal(t, "gemma", got[1].Model)
	assert.Equal(t, "openrouter", got[2].Name)
	assert.Equal(t, openai.OpenRouterBaseURL, got[2].BaseURL)
}

func TestChatConfigs_OpenAIUsesDefaultEndpoint(t *testing.T) {
	cfg := baseConfig()
	cfg.LLMProviders = []string{"openai"}
	cfg.OpenAIAPIKey = "sk"

	got, err := chatConfigs(cfg)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].BaseURL)
	assert.Equal(t, "gpt-4o-mini", got[0].Model)
}

func TestChatConfigs_UnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.LLMProviders = []string{"gemini", "claude"}

	_, err := chatConfigs(cfg)

	assert.ErrorContains(t, err, "claude")
}

func TestNewGenerationService_NoKeysStillBuilds(t *testing.T) {
	svc, err := newGenerationService(baseConfig())

	require.NoError(t, err)
	assert.Empty(t, svc.Providers())
}

func TestNewGenerationService_ProviderNames(t *testing.T) {
	cfg := baseConfig()
	cfg.GeminiAPIKey = "g"
	cfg.GroqAPIKey = "q"

	svc, err := newGenerationService(cfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini", "groq", "groq-gemma"}, svc.Providers())
}

func TestNewEmbeddingClient_HuggingFaceNeedsKey(t *testing.T) {
	_, err := newEmbeddingClient(baseConfig())
	assert.ErrorIs(t, err, huggingface.ErrNoAPIKey)

	cfg := baseConfig()
	cfg.HuggingFaceAPIKey = "hf"
	client, err := newEmbeddingClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, huggingface.DefaultModel, client.ModelID())
	assert.Equal(t, huggingface.DefaultDimensions, client.Dimension())
}

func TestNewEmbeddingClient_OpenAIDefaults(t *testing.T) {
	cfg := baseConfig()
	cfg.EmbeddingProvider = "openai"

	_, err := newEmbeddingClient(cfg)
	assert.Error(t, err)

	cfg.OpenAIAPIKey = "sk"
	client, err := newEmbeddingClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(openai.DefaultEmbeddingModel), client.ModelID())
	assert.Equal(t, openai.DefaultEmbeddingDimensions, client.Dimension())

	cfg.EmbeddingModel = "text-embedding-3-large"
	cfg.EmbeddingDimension = 3072
	client, err = newEmbeddingClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", client.ModelID())
	assert.Equal(t, 3072, client.Dimension())
}

func TestNewEmbeddingService_UsesClientModel(t *testing.T) {
	cfg := baseConfig()
	cfg.HuggingFaceAPIKey = "hf"
	cfg.EmbeddingCacheSize = 16
	cfg.EmbeddingRateLimit = 5

	svc, err := newEmbeddingService(cfg)

	require.NoError(t, err)
	assert.Equal(t, huggingface.DefaultModel, svc.ModelID())
	assert.Equal(t, huggingface.DefaultDimensions, svc.Dimension())
}
