package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/aura/internal/api"
	"github.com/cloo-solutions/aura/internal/api/middleware"
	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ConversationService interface {
	Get(ctx context.Context, sessionID, userID string) (*domain.ConversationSession, error)
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type MessageResponse struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type ConversationResponse struct {
	SessionID string            `json:"session_id"`
	TopicID   string            `json:"topic_id,omitempty"`
	State     string            `json:"state"`
	Version   int64             `json:"version"`
	History   []MessageResponse `json:"history"`
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.svc.Get(r.Context(), chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	history := make([]MessageResponse, len(session.History))
	for i, m := range session.History {
		history[i] = MessageResponse{
			Role:      string(m.Role),
			Text:      m.Text,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, ConversationResponse{
		SessionID: session.SessionID,
		TopicID:   session.TopicID,
		State:     string(session.State()),
		Version:   session.Version,
		History:   history,
	})
}
