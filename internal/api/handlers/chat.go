package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cloo-solutions/aura/internal/api"
	"github.com/cloo-solutions/aura/internal/api/middleware"
	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/service"
)

type TutorService interface {
	Ask(ctx context.Context, input service.AskInput) (*service.AskOutput, error)
}

type ChatHandler struct {
	svc TutorService
}

func NewChatHandler(svc TutorService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message     string   `json:"message"`
	SessionID   string   `json:"session_id,omitempty"`
	TopicID     string   `json:"topic_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	K           int      `json:"k,omitempty"`
}

type SourceResponse struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	SequenceIndex int     `json:"sequence_index"`
	Text          string  `json:"text"`
	Score         float32 `json:"score"`
}

type ChatResponse struct {
	SessionID string           `json:"session_id"`
	Answer    string           `json:"answer"`
	Provider  string           `json:"provider"`
	Grounded  bool             `json:"grounded"`
	Sources   []SourceResponse `json:"sources"`
}

func sourcesToResponse(chunks []domain.ScoredChunk) []SourceResponse {
	out := make([]SourceResponse, len(chunks))
	for i, sc := range chunks {
		out[i] = SourceResponse{
			ChunkID:       sc.Chunk.ID,
			DocumentID:    sc.Chunk.DocumentID,
			SequenceIndex: sc.Chunk.SequenceIndex,
			Text:          sc.Chunk.Text,
			Score:         sc.Score,
		}
	}
	return out
}

// Chat answers one learner message within a session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	out, err := h.svc.Ask(r.Context(), service.AskInput{
		UserID:      userID,
		SessionID:   req.SessionID,
		TopicID:     req.TopicID,
		Message:     req.Message,
		DocumentIDs: req.DocumentIDs,
		K:           req.K,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{
		SessionID: out.SessionID,
		Answer:    out.Answer,
		Provider:  out.Provider,
		Grounded:  out.Grounded,
		Sources:   sourcesToResponse(out.Sources),
	})
}
