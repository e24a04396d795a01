package domain

import "time"

// MessageRole identifies who authored a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationSession holds the bounded history of one tutoring session.
// Version is bumped on every committed write and guards concurrent updates.
type ConversationSession struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	TopicID   string    `json:"topic_id,omitempty"`
	History   []Message `json:"history"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContextPayload is what crosses the boundary to the language model: retrieved
// passages in retrieval order and prior turns oldest first.
type ContextPayload struct {
	RetrievedPassages []string  `json:"retrieved_passages"`
	PriorTurns        []Message `json:"prior_turns"`
}

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	SessionStateEmpty  SessionState = "empty"
	SessionStateActive SessionState = "active"
)

// State reports Empty until the first message is appended, Active afterwards.
func (s *ConversationSession) State() SessionState {
	if s == nil || (len(s.History) == 0 && s.Version == 0) {
		return SessionStateEmpty
	}
	return SessionStateActive
}

// Clone returns a deep copy so callers never share history slices.
func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Message(nil), s.History...)
	return &c
}

// IsValidRole checks if a MessageRole is valid
func IsValidRole(r MessageRole) bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}
