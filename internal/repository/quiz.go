package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QuizRepository struct {
	db dbtx
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{db: pool}
}

func (r *QuizRepository) Create(ctx context.Context, q *domain.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO quizzes (id, topic_id, title, questions, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.TopicID, q.Title, questions, q.CreatedAt,
	)
	return err
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	if !isUUID(id) {
		return nil, domain.ErrQuizNotFound
	}

	var q domain.Quiz
	var questions []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, topic_id, title, questions, created_at FROM quizzes WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.TopicID, &q.Title, &questions, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuizNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return &q, nil
}
