package memory

import (
	"context"
	"sync"

	"github.com/cloo-solutions/aura/internal/domain"
)

type QuizRepository struct {
	mu      sync.RWMutex
	quizzes map[string]*domain.Quiz
}

func NewQuizRepository() *QuizRepository {
	return &QuizRepository{quizzes: make(map[string]*domain.Quiz)}
}

func (r *QuizRepository) Create(ctx context.Context, q *domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes[q.ID] = cloneQuiz(q)
	return nil
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quizzes[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return cloneQuiz(q), nil
}

func cloneQuiz(q *domain.Quiz) *domain.Quiz {
	c := *q
	c.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		c.Questions[i] = question
	}
	return &c
}
