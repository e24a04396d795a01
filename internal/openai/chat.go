package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/aura/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI-compatible chat endpoints.
const (
	GeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

const tutorInstructions = "You are Aura, a patient study tutor. Answer the learner using the study material " +
	"below when it is relevant. If the material does not cover the question, say so and answer from general knowledge."

var (
	// ErrEmptyCompletion is returned when the provider answers with no choices or blank text
	ErrEmptyCompletion = errors.New("provider returned an empty completion")
	// ErrMissingAPIKey is returned when a chat provider has no key configured
	ErrMissingAPIKey = errors.New("chat provider API key is required")
)

// ChatAPI is the subset of the go-openai client used for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatConfig describes one OpenAI-compatible provider.
type ChatConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// ChatProvider generates tutor answers through one OpenAI-compatible endpoint.
type ChatProvider struct {
	name        string
	model       string
	maxTokens   int
	temperature float32
	api         ChatAPI
}

// NewChatProvider builds a provider for cfg.
func NewChatProvider(cfg ChatConfig) (*ChatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Name, ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: chat model is required", cfg.Name)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return newChatProviderWithAPI(cfg, openai.NewClientWithConfig(clientCfg)), nil
}

func newChatProviderWithAPI(cfg ChatConfig, api ChatAPI) *ChatProvider {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &ChatProvider{
		name:        cfg.Name,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
		api:         api,
	}
}

// Name identifies the provider in logs and fallback order.
func (p *ChatProvider) Name() string {
	return p.name
}

// Generate answers question grounded on payload.
func (p *ChatProvider) Generate(ctx context.Context, payload domain.ContextPayload, question string) (string, error) {
	resp, err := p.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    BuildMessages(payload, question),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	return text, nil
}

// BuildMessages lays out the system instructions, the retrieved passages,
// the prior turns and finally the learner question.
func BuildMessages(payload domain.ContextPayload, question string) []openai.ChatCompletionMessage {
	var system strings.Builder
	system.WriteString(tutorInstructions)
	if len(payload.RetrievedPassages) > 0 {
		system.WriteString("\n\nStudy material:")
		for i, passage := range payload.RetrievedPassages {
			fmt.Fprintf(&system, "\n[%d] %s", i+1, passage)
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(payload.PriorTurns)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system.String(),
	})
	for _, turn := range payload.PriorTurns {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	return messages
}
