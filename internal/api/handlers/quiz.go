package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"time"

	"github.com/cloo-solutions/aura/internal/api"
	"github.com/cloo-solutions/aura/internal/api/middleware"
	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/go-chi/chi/v5"
)

type QuizService interface {
	Create(ctx context.Context, input service.CreateQuizInput) (*domain.Quiz, error)
	Get(ctx context.Context, id string) (*domain.Quiz, error)
	SubmitAttempt(ctx context.Context, input service.SubmitAttemptInput) (*service.SubmitAttemptOutput, error)
}

type QuizHandler struct {
	svc QuizService
}

func NewQuizHandler(svc QuizService) *QuizHandler {
	return &QuizHandler{svc: svc}
}

type CreateQuizRequest struct {
	TopicID   string            `json:"topic_id"`
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

type SubmitAttemptRequest struct {
	Answers    map[string]string `json:"answers"`
	Email      string            `json:"email,omitempty"`
	TopicTitle string            `json:"topic_title,omitempty"`
}

type QuestionResponse struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// QuizResponse never carries the answer key.
type QuizResponse struct {
	ID        string             `json:"id"`
	TopicID   string             `json:"topic_id"`
	Title     string             `json:"title"`
	Questions []QuestionResponse `json:"questions"`
	CreatedAt string             `json:"created_at"`
}

type AttemptResponse struct {
	Result  *domain.GradingResult `json:"result"`
	Passed  bool                  `json:"passed"`
	Mastery *MasteryResponse      `json:"mastery"`
}

func quizToResponse(q *domain.Quiz) *QuizResponse {
	questions := make([]QuestionResponse, len(q.Questions))
	for i, question := range q.Questions {
		questions[i] = QuestionResponse{ID: question.ID, Prompt: question.Prompt, Options: question.Options}
	}
	return &QuizResponse{
		ID:        q.ID,
		TopicID:   q.TopicID,
		Title:     q.Title,
		Questions: questions,
		CreatedAt: q.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quiz, err := h.svc.Create(r.Context(), service.CreateQuizInput{
		TopicID:   req.TopicID,
		Title:     req.Title,
		Questions: req.Questions,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, quizToResponse(quiz))
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, quizToResponse(quiz))
}

// SubmitAttempt grades the learner's answers and updates their mastery.
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email != "" {
		addr, err := mail.ParseAddress(req.Email)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid email address")
			return
		}
		req.Email = addr.Address
	}

	out, err := h.svc.SubmitAttempt(r.Context(), service.SubmitAttemptInput{
		QuizID:     chi.URLParam(r, "id"),
		UserID:     userID,
		Answers:    req.Answers,
		Email:      req.Email,
		TopicTitle: req.TopicTitle,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AttemptResponse{
		Result:  out.Result,
		Passed:  out.Mastery.Status == domain.MasteryStatusCompleted,
		Mastery: masteryToResponse(out.Mastery),
	})
}
