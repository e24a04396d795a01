package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

// Retriever finds passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, k int, filter domain.VectorFilter) ([]domain.ScoredChunk, error)
}

// Generator produces a grounded answer.
type Generator interface {
	Generate(ctx context.Context, payload domain.ContextPayload, question string) (string, string, error)
}

// AskInput is one learner message.
type AskInput struct {
	UserID      string
	SessionID   string
	TopicID     string
	Message     string
	DocumentIDs []string
	K           int
}

// AskOutput is the tutor's reply.
type AskOutput struct {
	SessionID string
	Answer    string
	Provider  string
	Grounded  bool
	Sources   []domain.ScoredChunk
	Session   *domain.ConversationSession
}

// TutorService runs the query path: retrieve, assemble context, generate and
// record the exchange.
type TutorService struct {
	retriever     Retriever
	generator     Generator
	conversations *ConversationService
	uuidGen       UUIDGenerator
	now           func() time.Time
}

// NewTutorService creates a new TutorService instance
func NewTutorService(retriever Retriever, generator Generator, conversations *ConversationService) *TutorService {
	return &TutorService{
		retriever:     retriever,
		generator:     generator,
		conversations: conversations,
		uuidGen:       &DefaultUUIDGenerator{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Ask answers a message within a session. Messages on the same session are
// handled one at a time in arrival order. History only changes when an
// answer was generated.
func (s *TutorService) Ask(ctx context.Context, input AskInput) (*AskOutput, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}
	if input.SessionID == "" {
		input.SessionID = s.uuidGen.NewString()
	}

	ctx, span := telemetry.StartSpan(ctx, "TutorService.Ask", telemetry.SpanAttributes{
		UserID:    input.UserID,
		SessionID: input.SessionID,
		TopicID:   input.TopicID,
		Operation: "ask",
	})
	defer span.End()

	unlock, err := s.conversations.Lock(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.conversations.Load(ctx, input.SessionID, input.UserID, input.TopicID)
	if err != nil {
		return nil, err
	}

	asked := s.now()
	retrieved, err := s.retriever.Retrieve(ctx, input.Message, input.K, domain.VectorFilter{
		OwnerID:     input.UserID,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		return nil, err
	}

	payload := BuildContext(session, retrieved)
	answer, provider, err := s.generator.Generate(ctx, payload, input.Message)
	if err != nil {
		return nil, err
	}

	saved, err := s.conversations.Commit(ctx, session,
		domain.Message{Role: domain.RoleUser, Text: input.Message, Timestamp: asked},
		domain.Message{Role: domain.RoleAssistant, Text: answer, Timestamp: s.now()},
	)
	if err != nil {
		return nil, err
	}

	return &AskOutput{
		SessionID: input.SessionID,
		Answer:    answer,
		Provider:  provider,
		Grounded:  len(retrieved) > 0,
		Sources:   retrieved,
		Session:   saved,
	}, nil
}
