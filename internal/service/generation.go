package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

// LanguageModel is one text-generation provider.
type LanguageModel interface {
	Name() string
	Generate(ctx context.Context, payload domain.ContextPayload, question string) (string, error)
}

// GenerationService tries providers in configured order, retrying each one,
// until one answers.
type GenerationService struct {
	providers []LanguageModel
	retry     RetryPolicy
}

// NewGenerationService creates a new GenerationService instance
func NewGenerationService(providers []LanguageModel, policy RetryPolicy) *GenerationService {
	return &GenerationService{
		providers: providers,
		retry:     policy,
	}
}

// Providers returns the provider names in fallback order.
func (s *GenerationService) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate returns the first successful answer and the provider that produced
// it. ErrGenerationUnavailable is returned only once every provider is exhausted.
func (s *GenerationService) Generate(ctx context.Context, payload domain.ContextPayload, question string) (string, string, error) {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Generate", telemetry.SpanAttributes{
		Operation: "generate",
	})
	defer span.End()

	if len(s.providers) == 0 {
		return "", "", domain.ErrGenerationUnavailable.WithCause(errors.New("no language model providers configured"))
	}

	var errs []error
	for _, p := range s.providers {
		var text string
		err := s.retry.do(ctx, func(ctx context.Context) error {
			var gerr error
			text, gerr = p.Generate(ctx, payload, question)
			return gerr
		})
		if err == nil {
			return text, p.Name(), nil
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}

		log.Printf("Language model %s failed, trying next provider: %v", p.Name(), err)
		telemetry.AddBreadcrumb(ctx, "generation", fmt.Sprintf("provider %s exhausted", p.Name()))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return "", "", domain.ErrGenerationUnavailable.WithCause(errors.Join(errs...))
}
