package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrieverFunc func(ctx context.Context, query string, k int, filter domain.VectorFilter) ([]domain.ScoredChunk, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query string, k int, filter domain.VectorFilter) ([]domain.ScoredChunk, error) {
	return f(ctx, query, k, filter)
}

type generatorFunc func(ctx context.Context, payload domain.ContextPayload, question string) (string, string, error)

func (f generatorFunc) Generate(ctx context.Context, payload domain.ContextPayload, question string) (string, string, error) {
	return f(ctx, payload, question)
}

func passages(texts ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = domain.ScoredChunk{Chunk: domain.Chunk{ID: fmt.Sprintf("c%d", i), Text: text}, Score: 0.9}
	}
	return out
}

func echoGenerator(payloads *[]domain.ContextPayload) generatorFunc {
	var mu sync.Mutex
	return func(ctx context.Context, payload domain.ContextPayload, question string) (string, string, error) {
		mu.Lock()
		defer mu.Unlock()
		if payloads != nil {
			*payloads = append(*payloads, payload)
		}
		return "answer to " + question, "gemini", nil
	}
}

func TestTutorService_Ask_GroundedAnswer(t *testing.T) {
	var gotFilter domain.VectorFilter
	retriever := retrieverFunc(func(ctx context.Context, query string, k int, filter domain.VectorFilter) ([]domain.ScoredChunk, error) {
		gotFilter = filter
		return passages("Mitochondria produce ATP."), nil
	})
	var payloads []domain.ContextPayload
	store := newFakeConversationStore()
	svc := NewTutorService(retriever, echoGenerator(&payloads), NewConversationService(store, 10))

	out, err := svc.Ask(context.Background(), AskInput{
		UserID:      "u1",
		SessionID:   "s1",
		Message:     "What do mitochondria do?",
		DocumentIDs: []string{"doc1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "answer to What do mitochondria do?", out.Answer)
	assert.Equal(t, "gemini", out.Provider)
	assert.True(t, out.Grounded)
	assert.Len(t, out.Sources, 1)
	assert.Equal(t, domain.VectorFilter{OwnerID: "u1", DocumentIDs: []string{"doc1"}}, gotFilter)

	require.Len(t, payloads, 1)
	assert.Equal(t, []string{"Mitochondria produce ATP."}, payloads[0].RetrievedPassages)
	assert.Empty(t, payloads[0].PriorTurns)

	require.Len(t, out.Session.History, 2)
	assert.Equal(t, domain.RoleUser, out.Session.History[0].Role)
	assert.Equal(t, domain.RoleAssistant, out.Session.History[1].Role)
	assert.Equal(t, int64(1), out.Session.Version)
}

func TestTutorService_Ask_PriorTurnsReachTheModel(t *testing.T) {
	var payloads []domain.ContextPayload
	retriever := retrieverFunc(func(context.Context, string, int, domain.VectorFilter) ([]domain.ScoredChunk, error) {
		return nil, nil
	})
	svc := NewTutorService(retriever, echoGenerator(&payloads), NewConversationService(newFakeConversationStore(), 10))
	ctx := context.Background()

	_, err := svc.Ask(ctx, AskInput{UserID: "u1", SessionID: "s1", Message: "first"})
	require.NoError(t, err)
	_, err = svc.Ask(ctx, AskInput{UserID: "u1", SessionID: "s1", Message: "second"})
	require.NoError(t, err)

	require.Len(t, payloads, 2)
	require.Len(t, payloads[1].PriorTurns, 2)
	assert.Equal(t, "first", payloads[1].PriorTurns[0].Text)
	assert.Equal(t, "answer to first", payloads[1].PriorTurns[1].Text)
}

func TestTutorService_Ask_NoPassagesIsUngrounded(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, string, int, domain.VectorFilter) ([]domain.ScoredChunk, error) {
		return []domain.ScoredChunk{}, nil
	})
	svc := NewTutorService(retriever, echoGenerator(nil), NewConversationService(newFakeConversationStore(), 10))

	out, err := svc.Ask(context.Background(), AskInput{UserID: "u1", SessionID: "s1", Message: "hello"})

	require.NoError(t, err)
	assert.False(t, out.Grounded)
	assert.Len(t, out.Session.History, 2)
}

func TestTutorService_Ask_EmbeddingFailureLeavesHistory(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, string, int, domain.VectorFilter) ([]domain.ScoredChunk, error) {
		return nil, domain.ErrEmbeddingUnavailable.WithCause(errors.New("503"))
	})
	store := newFakeConversationStore()
	svc := NewTutorService(retriever, echoGenerator(nil), NewConversationService(store, 10))

	_, err := svc.Ask(context.Background(), AskInput{UserID: "u1", SessionID: "s1", Message: "hello"})

	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
	assert.Equal(t, 0, store.saves)
}

func TestTutorService_Ask_GenerationFailureLeavesHistory(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, string, int, domain.VectorFilter) ([]domain.ScoredChunk, error) {
		return passages("p"), nil
	})
	failing := generatorFunc(func(context.Context, domain.ContextPayload, string) (string, string, error) {
		return "", "", domain.ErrGenerationUnavailable
	})
	store := newFakeConversationStore()
	svc := NewTutorService(retriever, failing, NewConversationService(store, 10))

	_, err := svc.Ask(context.Background(), AskInput{UserID: "u1", SessionID: "s1", Message: "hello"})

	assert.True(t, errors.Is(err, domain.ErrGenerationUnavailable))
	assert.Equal(t, 0, store.saves)
}

func TestTutorService_Ask_AssignsSessionID(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, string, int, domain.VectorFilter) ([]domain.ScoredChunk, error) {
		return nil, nil
	})
	svc := NewTutorService(retriever, echoGenerator(nil), NewConversationService(newFakeConversationStore(), 10))
	svc.uuidGen = NewMockUUIDGenerator("generated-session")

	out, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "generated-session", out.SessionID)
}

func TestTutorService_Ask_Validation(t *testing.T) {
	svc := NewTutorService(nil, nil, NewConversationService(newFakeConversationStore(), 10))

	_, err := svc.Ask(context.Background(), AskInput{UserID: "", Message: "hi"})
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))

	_, err = svc.Ask(context.Background(), AskInput{UserID: "u1", Message: "  "})
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
}

func TestTutorService_Ask_ConcurrentMessagesOnOneSession(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, string, int, domain.VectorFilter) ([]domain.ScoredChunk, error) {
		return nil, nil
	})
	store := newFakeConversationStore()
	svc := NewTutorService(retriever, echoGenerator(nil), NewConversationService(store, 10))

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Ask(context.Background(), AskInput{UserID: "u1", SessionID: "s1", Message: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), session.Version)
	assert.Len(t, session.History, 2*n)
	for i := 0; i < len(session.History); i += 2 {
		assert.Equal(t, domain.RoleUser, session.History[i].Role)
		assert.Equal(t, "answer to "+session.History[i].Text, session.History[i+1].Text)
	}
}
