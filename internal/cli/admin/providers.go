package admin

import (
	"fmt"
	"log"

	"github.com/cloo-solutions/aura/internal/config"
	"github.com/cloo-solutions/aura/internal/huggingface"
	"github.com/cloo-solutions/aura/internal/openai"
	"github.com/cloo-solutions/aura/internal/service"
	goopenai "github.com/sashabaranov/go-openai"
)

// embeddingClient is an EmbeddingClient that also reports its model.
type embeddingClient interface {
	service.EmbeddingClient
	ModelID() string
	Dimension() int
}

func newEmbeddingClient(cfg *config.Config) (embeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if !cfg.HasOpenAI() {
			return nil, fmt.Errorf("EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY")
		}
		// The stock model settings name the Hugging Face model, so fall back
		// to the OpenAI defaults unless they were overridden.
		model := goopenai.EmbeddingModel(cfg.EmbeddingModel)
		if cfg.EmbeddingModel == huggingface.DefaultModel {
			model = ""
		}
		dims := cfg.EmbeddingDimension
		if dims == huggingface.DefaultDimensions && model == "" {
			dims = 0
		}
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      model,
			EmbeddingDimensions: dims,
		}), nil
	default:
		client, err := huggingface.NewClient(huggingface.Config{
			APIKey:     cfg.HuggingFaceAPIKey,
			BaseURL:    cfg.HuggingFaceBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimension,
		})
		if err != nil {
			return nil, fmt.Errorf("huggingface embeddings: %w", err)
		}
		return client, nil
	}
}

func newEmbeddingService(cfg *config.Config) (*service.EmbeddingService, error) {
	client, err := newEmbeddingClient(cfg)
	if err != nil {
		return nil, err
	}
	embCfg := service.DefaultEmbeddingConfig(client.ModelID(), client.Dimension())
	embCfg.CacheSize = cfg.EmbeddingCacheSize
	embCfg.RequestsPerSecond = cfg.EmbeddingRateLimit
	return service.NewEmbeddingService(client, embCfg)
}

// chatConfigs resolves LLM_PROVIDERS into endpoint settings, in order.
// Providers without an API key are skipped.
func chatConfigs(cfg *config.Config) ([]openai.ChatConfig, error) {
	var out []openai.ChatConfig
	for _, name := range cfg.LLMProviders {
		var cc openai.ChatConfig
		switch name {
		case "gemini":
			cc = openai.ChatConfig{APIKey: cfg.GeminiAPIKey, BaseURL: openai.GeminiBaseURL, Model: cfg.GeminiModel}
		case "groq":
			cc = openai.ChatConfig{APIKey: cfg.GroqAPIKey, BaseURL: openai.GroqBaseURL, Model: cfg.GroqLlamaModel}
		case "groq-gemma":
			cc = openai.ChatConfig{APIKey: cfg.GroqAPIKey, BaseURL: openai.GroqBaseURL, Model: cfg.GroqGemmaModel}
		case "openrouter":
			cc = openai.ChatConfig{APIKey: cfg.OpenRouterAPIKey, BaseURL: openai.OpenRouterBaseURL, Model: cfg.OpenRouterModel}
		case "openai":
			cc = openai.ChatConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIChatModel}
		default:
			return nil, fmt.Errorf("unknown LLM provider %q", name)
		}
		if cc.APIKey == "" {
			log.Printf("llm provider %s skipped: no API key", name)
			continue
		}
		cc.Name = name
		out = append(out, cc)
	}
	return out, nil
}

func newGenerationService(cfg *config.Config) (*service.GenerationService, error) {
	configs, err := chatConfigs(cfg)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		log.Println("warning: no language model provider configured, chat will answer 503")
	}

	models := make([]service.LanguageModel, 0, len(configs))
	for _, cc := range configs {
		p, err := openai.NewChatProvider(cc)
		if err != nil {
			return nil, err
		}
		models = append(models, p)
	}
	return service.NewGenerationService(models, service.DefaultRetryPolicy()), nil
}
