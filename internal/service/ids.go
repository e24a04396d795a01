package service

import "github.com/google/uuid"

// UUIDGenerator issues identifiers for documents, ingest jobs, quizzes,
// attempts and conversation sessions.
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator issues random v4 UUIDs.
type DefaultUUIDGenerator struct{}

func (DefaultUUIDGenerator) NewString() string { return uuid.NewString() }
