//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiKey(t *testing.T) string {
	key := os.Getenv("AURA_OPENAI_API_KEY")
	if key == "" {
		t.Skip("AURA_OPENAI_API_KEY not set")
	}
	return key
}

func TestIntegration_EmbedStudyMaterial(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: apiKey(t)})

	vec, err := client.GenerateEmbedding(context.Background(), "The mitochondria is the powerhouse of the cell.")

	require.NoError(t, err)
	assert.Len(t, vec, DefaultEmbeddingDimensions)
}

func TestIntegration_ChatAnswersFromPassages(t *testing.T) {
	provider, err := NewChatProvider(ChatConfig{Name: "openai", APIKey: apiKey(t), Model: "gpt-4o-mini", MaxTokens: 64})
	require.NoError(t, err)

	answer, err := provider.Generate(context.Background(), domain.ContextPayload{
		RetrievedPassages: []string{"Aura's test fact: the capital of the planet Zorb is Quillon."},
	}, "What is the capital of Zorb?")

	require.NoError(t, err)
	assert.Contains(t, answer, "Quillon")
}
