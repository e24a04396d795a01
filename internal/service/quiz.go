package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

// QuizRepository persists quizzes.
type QuizRepository interface {
	Create(ctx context.Context, quiz *domain.Quiz) error
	GetByID(ctx context.Context, id string) (*domain.Quiz, error)
}

type CreateQuizInput struct {
	TopicID   string
	Title     string
	Questions []domain.Question
}

type SubmitAttemptInput struct {
	QuizID  string
	UserID  string
	Answers map[string]string
	// Email receives the result notification; empty skips delivery.
	Email string
	// TopicTitle overrides the quiz title in the notification.
	TopicTitle string
}

type SubmitAttemptOutput struct {
	Result  *domain.GradingResult
	Mastery *domain.MasteryRecord
}

// QuizService stores quizzes and routes attempts through grading and mastery.
type QuizService struct {
	quizzes QuizRepository
	mastery *MasteryService
	uuidGen UUIDGenerator
	now     func() time.Time
}

// NewQuizService creates a new QuizService instance
func NewQuizService(quizzes QuizRepository, mastery *MasteryService) *QuizService {
	return NewQuizServiceWithUUIDGen(quizzes, mastery, &DefaultUUIDGenerator{})
}

// NewQuizServiceWithUUIDGen creates a QuizService with a custom UUID generator (for testing)
func NewQuizServiceWithUUIDGen(quizzes QuizRepository, mastery *MasteryService, uuidGen UUIDGenerator) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		mastery: mastery,
		uuidGen: uuidGen,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a quiz. Questions without an id are numbered q1..qn by position.
func (s *QuizService) Create(ctx context.Context, input CreateQuizInput) (*domain.Quiz, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuizService.Create", telemetry.SpanAttributes{
		TopicID:   input.TopicID,
		Operation: "create",
	})
	defer span.End()

	questions := make([]domain.Question, len(input.Questions))
	for i, q := range input.Questions {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		questions[i] = q
	}

	title := input.Title
	if title == "" {
		title = input.TopicID
	}

	quiz := domain.NewQuiz(s.uuidGen.NewString(), input.TopicID, title, questions, s.now())
	if err := domain.ValidateQuiz(quiz); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid quiz", err)
	}

	if err := s.quizzes.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}
	return quiz, nil
}

// Get returns a stored quiz.
func (s *QuizService) Get(ctx context.Context, id string) (*domain.Quiz, error) {
	return s.quizzes.GetByID(ctx, id)
}

// SubmitAttempt grades an attempt and records the result against the quiz topic.
func (s *QuizService) SubmitAttempt(ctx context.Context, input SubmitAttemptInput) (*SubmitAttemptOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuizService.SubmitAttempt", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "submit",
	})
	defer span.End()

	if input.UserID == "" {
		return nil, domain.ErrMissingRequiredField
	}

	quiz, err := s.quizzes.GetByID(ctx, input.QuizID)
	if err != nil {
		return nil, err
	}

	attempt := &domain.QuizAttempt{
		AttemptID:   s.uuidGen.NewString(),
		UserID:      input.UserID,
		TopicID:     quiz.TopicID,
		QuizID:      quiz.ID,
		Answers:     input.Answers,
		SubmittedAt: s.now(),
	}

	result, err := Grade(attempt, quiz.AnswerKey())
	if err != nil {
		return nil, err
	}

	title := input.TopicTitle
	if title == "" {
		title = quiz.Title
	}
	record, err := s.mastery.RecordResult(ctx, attempt, result, Recipient{Email: input.Email, TopicTitle: title})
	if err != nil {
		return nil, err
	}

	return &SubmitAttemptOutput{Result: result, Mastery: record}, nil
}
