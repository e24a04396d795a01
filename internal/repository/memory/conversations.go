package memory

import (
	"context"
	"sync"

	"github.com/cloo-solutions/aura/internal/domain"
)

type ConversationStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ConversationSession
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{sessions: make(map[string]*domain.ConversationSession)}
}

func (s *ConversationStore) Get(ctx context.Context, sessionID string) (*domain.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *ConversationStore) Save(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if existing, ok := s.sessions[session.SessionID]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return domain.ErrVersionConflict
	}
	stored := session.Clone()
	stored.Version = expectedVersion + 1
	s.sessions[session.SessionID] = stored
	return nil
}
