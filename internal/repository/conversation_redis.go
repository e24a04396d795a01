package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ConversationRedisStore keeps each session as one JSON value. Versioned
// writes use WATCH so a concurrent writer aborts the transaction.
type ConversationRedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewConversationRedisStore creates a store. A zero ttl keeps sessions forever.
func NewConversationRedisStore(client redis.UniversalClient, ttl time.Duration) *ConversationRedisStore {
	return &ConversationRedisStore{client: client, prefix: "aura:session:", ttl: ttl}
}

func (s *ConversationRedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *ConversationRedisStore) Get(ctx context.Context, sessionID string) (*domain.ConversationSession, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return decodeSession(data)
}

func (s *ConversationRedisStore) Save(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error {
	key := s.key(session.SessionID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := decodeSession(data)
			if err != nil {
				return err
			}
			current = stored.Version
		}
		if current != expectedVersion {
			return domain.ErrVersionConflict
		}

		next := session.Clone()
		next.Version = expectedVersion + 1
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	return err
}

func decodeSession(data []byte) (*domain.ConversationSession, error) {
	var session domain.ConversationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.History == nil {
		session.History = []domain.Message{}
	}
	return &session, nil
}
