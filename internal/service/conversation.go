package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

const DefaultMaxConversationHistory = 10

// maxSaveAttempts bounds the re-read loop after a version conflict.
const maxSaveAttempts = 3

// ConversationStore persists sessions with versioned writes. Save succeeds
// only when the stored version equals expectedVersion (0 for a new session)
// and stores expectedVersion+1.
type ConversationStore interface {
	Get(ctx context.Context, sessionID string) (*domain.ConversationSession, error)
	Save(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error
}

// ConversationService keeps bounded per-session histories.
type ConversationService struct {
	store      ConversationStore
	maxHistory int
	locks      *KeyedMutex
	now        func() time.Time
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(store ConversationStore, maxHistory int) *ConversationService {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxConversationHistory
	}
	return &ConversationService{
		store:      store,
		maxHistory: maxHistory,
		locks:      NewKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// MaxHistory returns the history cap.
func (s *ConversationService) MaxHistory() int {
	return s.maxHistory
}

// AppendTurn appends msg and evicts from the front until the history fits max.
func AppendTurn(session *domain.ConversationSession, msg domain.Message, max int) {
	session.History = append(session.History, msg)
	if over := len(session.History) - max; over > 0 {
		session.History = append([]domain.Message(nil), session.History[over:]...)
	}
}

// BuildContext assembles the language-model payload. Passages keep retrieval
// order; prior turns are copied oldest first.
func BuildContext(session *domain.ConversationSession, retrieved []domain.ScoredChunk) domain.ContextPayload {
	payload := domain.ContextPayload{
		RetrievedPassages: make([]string, 0, len(retrieved)),
		PriorTurns:        []domain.Message{},
	}
	for _, sc := range retrieved {
		payload.RetrievedPassages = append(payload.RetrievedPassages, sc.Chunk.Text)
	}
	if session != nil {
		payload.PriorTurns = append(payload.PriorTurns, session.History...)
	}
	return payload
}

// Lock serializes work on one session in arrival order.
func (s *ConversationService) Lock(ctx context.Context, sessionID string) (func(), error) {
	return s.locks.Lock(ctx, sessionID)
}

// Load returns the session, or a new empty one owned by userID. A session
// owned by someone else is reported as not found.
func (s *ConversationService) Load(ctx context.Context, sessionID, userID, topicID string) (*domain.ConversationSession, error) {
	session, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return &domain.ConversationSession{
			SessionID: sessionID,
			UserID:    userID,
			TopicID:   topicID,
			History:   []domain.Message{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Get returns an existing session owned by userID.
func (s *ConversationService) Get(ctx context.Context, sessionID, userID string) (*domain.ConversationSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.Get", telemetry.SpanAttributes{
		UserID:    userID,
		SessionID: sessionID,
		Operation: "get",
	})
	defer span.End()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Commit appends turns and writes the session if nobody else has since. On a
// version conflict the session is re-read and the turns re-applied.
func (s *ConversationService) Commit(ctx context.Context, session *domain.ConversationSession, turns ...domain.Message) (*domain.ConversationSession, error) {
	current := session
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		next := current.Clone()
		for _, turn := range turns {
			if turn.Timestamp.IsZero() {
				turn.Timestamp = s.now()
			}
			AppendTurn(next, turn, s.maxHistory)
		}
		next.UpdatedAt = s.now()

		err := s.store.Save(ctx, next, current.Version)
		if err == nil {
			next.Version = current.Version + 1
			return next, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("save session %s: %w", session.SessionID, err)
		}

		current, err = s.store.Get(ctx, session.SessionID)
		if err != nil {
			return nil, fmt.Errorf("reload session %s: %w", session.SessionID, err)
		}
	}
	return nil, domain.ErrVersionConflict
}
