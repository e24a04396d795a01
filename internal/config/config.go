package config

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"5000"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	FrontendURL  string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
	FrontendProd string `envconfig:"FRONTEND_PROD" default:"https://aura.faruqweb.com"`
	// CORSAllowAll admits every origin. Refused when ENVIRONMENT=production.
	CORSAllowAll bool `envconfig:"CORS_ALLOW_ALL" default:"false"`

	// Empty DatabaseURL runs every store in process memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"aura-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Embedding
	EmbeddingProvider  string  `envconfig:"EMBEDDING_PROVIDER" default:"huggingface"`
	EmbeddingModel     string  `envconfig:"EMBEDDING_MODEL" default:"sentence-transformers/all-mpnet-base-v2"`
	EmbeddingDimension int     `envconfig:"EMBEDDING_DIMENSION" default:"768"`
	EmbeddingRateLimit float64 `envconfig:"EMBEDDING_RATE_LIMIT" default:"10"`
	EmbeddingCacheSize int     `envconfig:"EMBEDDING_CACHE_SIZE" default:"1024"`
	HuggingFaceAPIKey  string  `envconfig:"HUGGINGFACE_API_KEY"`
	HuggingFaceBaseURL string  `envconfig:"HUGGINGFACE_BASE_URL" default:"https://router.huggingface.co/hf-inference/models"`
	OpenAIAPIKey       string  `envconfig:"OPENAI_API_KEY"`

	// Retrieval
	VectorIndexName        string  `envconfig:"VECTOR_INDEX_NAME" default:"document-index"`
	ChunkSize              int     `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap           int     `envconfig:"CHUNK_OVERLAP" default:"50"`
	TopK                   int     `envconfig:"TOP_K" default:"5"`
	MinScore               float32 `envconfig:"MIN_SCORE" default:"0.25"`
	MaxConversationHistory int     `envconfig:"MAX_CONVERSATION_HISTORY" default:"10"`

	// Zero keeps Redis sessions until evicted.
	ConversationTTL time.Duration `envconfig:"CONVERSATION_TTL" default:"168h"`
	DBMaxConns      int32         `envconfig:"DB_MAX_CONNS" default:"10"`

	// Language model providers in fallback order
	LLMProviders     []string `envconfig:"LLM_PROVIDERS" default:"gemini,groq,groq-gemma,openrouter"`
	GeminiAPIKey     string   `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string   `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GroqAPIKey       string   `envconfig:"GROQ_API_KEY"`
	GroqLlamaModel   string   `envconfig:"GROQ_LLAMA_MODEL" default:"llama-3.1-8b-instant"`
	GroqGemmaModel   string   `envconfig:"GROQ_GEMMA_MODEL" default:"gemma2-9b-it"`
	OpenRouterAPIKey string   `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterModel  string   `envconfig:"OPENROUTER_MODEL" default:"meta-llama/llama-3.1-8b-instruct:free"`
	OpenAIChatModel  string   `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`

	// Mastery policy
	MasteryBaseIntervalDays int     `envconfig:"MASTERY_BASE_INTERVAL_DAYS" default:"1"`
	MasteryGrowthFactor     float64 `envconfig:"MASTERY_GROWTH_FACTOR" default:"2.0"`
	MasteryPassThreshold    int     `envconfig:"MASTERY_PASS_THRESHOLD" default:"7"`
	MasteryMaxIntervalDays  int     `envconfig:"MASTERY_MAX_INTERVAL_DAYS" default:"365"`

	// Notifications
	SMTPHost              string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort              int    `envconfig:"SMTP_PORT" default:"587"`
	GmailUser             string `envconfig:"GMAIL_USER"`
	GmailAppPassword      string `envconfig:"GMAIL_APP_PASSWORD"`
	NotificationQueueSize int    `envconfig:"NOTIFICATION_QUEUE_SIZE" default:"100"`
	NotificationWorkers   int    `envconfig:"NOTIFICATION_WORKERS" default:"2"`

	// Uploads and background ingest
	MaxUploadBytes     int64         `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`
	IngestPollInterval time.Duration `envconfig:"INGEST_POLL_INTERVAL" default:"2s"`
	IngestBatchSize    int           `envconfig:"INGEST_BATCH_SIZE" default:"5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AURA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Usage writes the table of AURA_ variables with their types and defaults.
func Usage(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef("AURA", &Config{}, tw, envconfig.DefaultTableFormat); err != nil {
		return err
	}
	return tw.Flush()
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.MaxConversationHistory <= 0 {
		return fmt.Errorf("MAX_CONVERSATION_HISTORY must be positive, got %d", c.MaxConversationHistory)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	switch c.EmbeddingProvider {
	case "huggingface", "openai":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be huggingface or openai, got %q", c.EmbeddingProvider)
	}
	if c.CORSAllowAll && c.Environment == "production" {
		return fmt.Errorf("CORS_ALLOW_ALL is not allowed in production")
	}
	if err := domain.ValidateMasteryPolicy(c.MasteryPolicy()); err != nil {
		return fmt.Errorf("invalid mastery policy: %w", err)
	}
	return nil
}

func (c *Config) MasteryPolicy() domain.MasteryPolicy {
	return domain.MasteryPolicy{
		BaseIntervalDays: c.MasteryBaseIntervalDays,
		GrowthFactor:     c.MasteryGrowthFactor,
		PassThreshold:    c.MasteryPassThreshold,
		MaxIntervalDays:  c.MasteryMaxIntervalDays,
	}
}

// AllowedOrigins lists the CORS origins accepted by the API. With
// CORSAllowAll the list ends in "*", which admits any origin.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.FrontendURL, c.FrontendProd, "http://localhost:5173", "http://localhost:3000"}
	if c.CORSAllowAll {
		origins = append(origins, "*")
	}
	seen := make(map[string]bool, len(origins))
	out := origins[:0]
	for _, o := range origins {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSMTP() bool {
	return c.GmailUser != "" && c.GmailAppPassword != ""
}
