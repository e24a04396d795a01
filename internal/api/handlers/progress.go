package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/aura/internal/api"
	"github.com/cloo-solutions/aura/internal/api/middleware"
	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/go-chi/chi/v5"
)

type MasteryService interface {
	Get(ctx context.Context, userID, topicID string) (*domain.MasteryRecord, error)
	ListProgress(ctx context.Context, input service.ListProgressInput) (*service.ListProgressOutput, error)
	DueReviews(ctx context.Context, userID string, asOf time.Time) ([]*domain.MasteryRecord, error)
}

type ProgressHandler struct {
	svc MasteryService
}

func NewProgressHandler(svc MasteryService) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

type MasteryHistoryResponse struct {
	Score     int    `json:"score"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type MasteryResponse struct {
	TopicID            string                   `json:"topic_id"`
	Status             string                   `json:"status"`
	LastScore          int                      `json:"last_score"`
	ReviewIntervalDays int                      `json:"review_interval_days"`
	NextReviewDate     string                   `json:"next_review_date"`
	History            []MasteryHistoryResponse `json:"history"`
	UpdatedAt          string                   `json:"updated_at"`
}

type ListProgressResponse struct {
	Items   []*MasteryResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

func masteryToResponse(rec *domain.MasteryRecord) *MasteryResponse {
	history := make([]MasteryHistoryResponse, len(rec.History))
	for i, h := range rec.History {
		history[i] = MasteryHistoryResponse{
			Score:     h.Score,
			Status:    string(h.Status),
			Timestamp: h.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return &MasteryResponse{
		TopicID:            rec.TopicID,
		Status:             string(rec.Status),
		LastScore:          rec.LastScore,
		ReviewIntervalDays: rec.ReviewIntervalDays,
		NextReviewDate:     rec.NextReviewDate.UTC().Format(time.RFC3339),
		History:            history,
		UpdatedAt:          rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func masteryList(records []*domain.MasteryRecord) []*MasteryResponse {
	out := make([]*MasteryResponse, len(records))
	for i, rec := range records {
		out[i] = masteryToResponse(rec)
	}
	return out
}

// List pages through the learner's topics, most recently practiced first.
func (h *ProgressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.ListProgress(r.Context(), service.ListProgressInput{
		UserID: userID,
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ListProgressResponse{
		Items:   masteryList(out.Items),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

// Due lists topics whose review date has arrived. as_of defaults to now.
func (h *ProgressHandler) Due(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "as_of must be an RFC 3339 timestamp")
			return
		}
		asOf = parsed
	}

	records, err := h.svc.DueReviews(r.Context(), userID, asOf)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, masteryList(records))
}

func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rec, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "topicId"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, masteryToResponse(rec))
}
