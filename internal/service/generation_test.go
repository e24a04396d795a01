package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}

func TestGenerationService_FirstProviderAnswers(t *testing.T) {
	gemini := &MockLanguageModel{name: "gemini"}
	groq := &MockLanguageModel{name: "groq"}
	gemini.On("Generate", mock.Anything, mock.Anything, "what is ATP?").Return("energy currency", nil).Once()

	svc := NewGenerationService([]LanguageModel{gemini, groq}, fastRetry)
	text, provider, err := svc.Generate(context.Background(), domain.ContextPayload{}, "what is ATP?")

	require.NoError(t, err)
	assert.Equal(t, "energy currency", text)
	assert.Equal(t, "gemini", provider)
	groq.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	gemini.AssertExpectations(t)
}

func TestGenerationService_RetriesBeforeFallingBack(t *testing.T) {
	gemini := &MockLanguageModel{name: "gemini"}
	gemini.On("Generate", mock.Anything, mock.Anything, "q").Return("", errors.New("429")).Twice()
	gemini.On("Generate", mock.Anything, mock.Anything, "q").Return("third time lucky", nil).Once()

	svc := NewGenerationService([]LanguageModel{gemini}, fastRetry)
	text, _, err := svc.Generate(context.Background(), domain.ContextPayload{}, "q")

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", text)
	gemini.AssertNumberOfCalls(t, "Generate", 3)
}

func TestGenerationService_FallsBackInOrder(t *testing.T) {
	gemini := &MockLanguageModel{name: "gemini"}
	groq := &MockLanguageModel{name: "groq"}
	openrouter := &MockLanguageModel{name: "openrouter"}
	gemini.On("Generate", mock.Anything, mock.Anything, "q").Return("", errors.New("down"))
	groq.On("Generate", mock.Anything, mock.Anything, "q").Return("from groq", nil).Once()

	svc := NewGenerationService([]LanguageModel{gemini, groq, openrouter}, fastRetry)
	text, provider, err := svc.Generate(context.Background(), domain.ContextPayload{}, "q")

	require.NoError(t, err)
	assert.Equal(t, "from groq", text)
	assert.Equal(t, "groq", provider)
	gemini.AssertNumberOfCalls(t, "Generate", 3)
	openrouter.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerationService_AllProvidersExhausted(t *testing.T) {
	gemini := &MockLanguageModel{name: "gemini"}
	groq := &MockLanguageModel{name: "groq"}
	gemini.On("Generate", mock.Anything, mock.Anything, "q").Return("", errors.New("down"))
	groq.On("Generate", mock.Anything, mock.Anything, "q").Return("", errors.New("quota"))

	svc := NewGenerationService([]LanguageModel{gemini, groq}, fastRetry)
	_, _, err := svc.Generate(context.Background(), domain.ContextPayload{}, "q")

	assert.True(t, errors.Is(err, domain.ErrGenerationUnavailable))
	assert.Contains(t, err.Error(), "gemini: down")
	assert.Contains(t, err.Error(), "groq: quota")
	gemini.AssertNumberOfCalls(t, "Generate", 3)
	groq.AssertNumberOfCalls(t, "Generate", 3)
}

func TestGenerationService_NoProviders(t *testing.T) {
	svc := NewGenerationService(nil, fastRetry)

	_, _, err := svc.Generate(context.Background(), domain.ContextPayload{}, "q")

	assert.True(t, errors.Is(err, domain.ErrGenerationUnavailable))
}

func TestGenerationService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gemini := &MockLanguageModel{name: "gemini"}
	groq := &MockLanguageModel{name: "groq"}
	gemini.On("Generate", mock.Anything, mock.Anything, "q").
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	svc := NewGenerationService([]LanguageModel{gemini, groq}, fastRetry)
	_, _, err := svc.Generate(ctx, domain.ContextPayload{}, "q")

	assert.ErrorIs(t, err, context.Canceled)
	groq.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerationService_Providers(t *testing.T) {
	svc := NewGenerationService([]LanguageModel{&MockLanguageModel{name: "a"}, &MockLanguageModel{name: "b"}}, fastRetry)
	assert.Equal(t, []string{"a", "b"}, svc.Providers())
}
