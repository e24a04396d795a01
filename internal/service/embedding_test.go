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

// MockEmbeddingClient mocks the remote embedding client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func testEmbeddingConfig(cacheSize int) EmbeddingConfig {
	return EmbeddingConfig{
		ModelID:     "test-model",
		Dimension:   3,
		CacheSize:   cacheSize,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}
}

func TestEmbeddingService_Embed_Success(t *testing.T) {
	client := new(MockEmbeddingClient)
	svc, err := NewEmbeddingService(client, testEmbeddingConfig(0))
	require.NoError(t, err)

	client.On("GenerateEmbedding", mock.Anything, "cells").Return([]float32{1, 0, 0}, nil).Once()

	vec, err := svc.Embed(context.Background(), "cells")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, "test-model", svc.ModelID())
	assert.Equal(t, 3, svc.Dimension())
	client.AssertExpectations(t)
}

func TestEmbeddingService_Embed_RetriesTransientFailure(t *testing.T) {
	client := new(MockEmbeddingClient)
	svc, err := NewEmbeddingService(client, testEmbeddingConfig(0))
	require.NoError(t, err)

	client.On("GenerateEmbedding", mock.Anything, "q").Return(nil, errors.New("503")).Twice()
	client.On("GenerateEmbedding", mock.Anything, "q").Return([]float32{0, 1, 0}, nil).Once()

	vec, err := svc.Embed(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)
	client.AssertNumberOfCalls(t, "GenerateEmbedding", 3)
}

func TestEmbeddingService_Embed_ExhaustedRetries(t *testing.T) {
	client := new(MockEmbeddingClient)
	svc, err := NewEmbeddingService(client, testEmbeddingConfig(0))
	require.NoError(t, err)

	client.On("GenerateEmbedding", mock.Anything, "q").Return(nil, errors.New("timeout"))

	_, err = svc.Embed(context.Background(), "q")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
	client.AssertNumberOfCalls(t, "GenerateEmbedding", 3)
}

func TestEmbeddingService_Embed_DimensionMismatchNotRetried(t *testing.T) {
	client := new(MockEmbeddingClient)
	svc, err := NewEmbeddingService(client, testEmbeddingConfig(0))
	require.NoError(t, err)

	client.On("GenerateEmbedding", mock.Anything, "q").Return([]float32{1, 2}, nil)

	_, err = svc.Embed(context.Background(), "q")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
	assert.ErrorIs(t, err, errDimensionMismatch)
	client.AssertNumberOfCalls(t, "GenerateEmbedding", 1)
}

func TestEmbeddingService_Embed_CachesVectors(t *testing.T) {
	client := new(MockEmbeddingClient)
	svc, err := NewEmbeddingService(client, testEmbeddingConfig(8))
	require.NoError(t, err)

	client.On("GenerateEmbedding", mock.Anything, "q").Return([]float32{1, 2, 3}, nil).Once()

	first, err := svc.Embed(context.Background(), "q")
	require.NoError(t, err)
	first[0] = 99

	second, err := svc.Embed(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 2, 3}, second)
	client.AssertNumberOfCalls(t, "GenerateEmbedding", 1)
}

func TestEmbeddingService_Embed_CancelledContext(t *testing.T) {
	client := new(MockEmbeddingClient)
	cfg := testEmbeddingConfig(0)
	cfg.RequestsPerSecond = 1
	cfg.Burst = 1
	svc, err := NewEmbeddingService(client, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Embed(ctx, "q")
	require.Error(t, err)
	client.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestNewEmbeddingService_Validation(t *testing.T) {
	_, err := NewEmbeddingService(nil, testEmbeddingConfig(0))
	assert.Error(t, err)

	_, err = NewEmbeddingService(new(MockEmbeddingClient), EmbeddingConfig{Dimension: 3})
	assert.Error(t, err)

	_, err = NewEmbeddingService(new(MockEmbeddingClient), EmbeddingConfig{ModelID: "m"})
	assert.Error(t, err)
}
