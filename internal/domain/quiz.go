package domain

import (
	"fmt"
	"time"
)

// MaxQuizScore is the top of the grading scale.
const MaxQuizScore = 10

// Question is a single quiz question with its correct answer.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer"`
}

// Quiz is a stored set of questions on a topic.
type Quiz struct {
	ID        string
	TopicID   string
	Title     string
	Questions []Question
	CreatedAt time.Time
}

// AnswerKey maps question ids to their correct answers.
type AnswerKey map[string]string

// AnswerKey derives the grading key from the quiz questions.
func (q *Quiz) AnswerKey() AnswerKey {
	key := make(AnswerKey, len(q.Questions))
	for _, question := range q.Questions {
		key[question.ID] = question.Answer
	}
	return key
}

// QuizAttempt is a learner's submission for a quiz.
type QuizAttempt struct {
	AttemptID   string
	UserID      string
	TopicID     string
	QuizID      string
	Answers     map[string]string
	SubmittedAt time.Time
}

// GradingResult is derived from an attempt and never stored on its own.
type GradingResult struct {
	AttemptID      string `json:"attempt_id"`
	Score          int    `json:"score"`
	CorrectCount   int    `json:"correct_count"`
	TotalQuestions int    `json:"total_questions"`
}

// NewQuiz creates a new Quiz instance
func NewQuiz(id, topicID, title string, questions []Question, createdAt time.Time) *Quiz {
	return &Quiz{
		ID:        id,
		TopicID:   topicID,
		Title:     title,
		Questions: questions,
		CreatedAt: createdAt,
	}
}

// ValidateQuiz validates a Quiz instance
func ValidateQuiz(q *Quiz) error {
	if q == nil {
		return fmt.Errorf("quiz cannot be nil")
	}

	if q.ID == "" {
		return fmt.Errorf("quiz ID is required")
	}

	if q.TopicID == "" {
		return fmt.Errorf("quiz TopicID is required")
	}

	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz Questions must not be empty")
	}

	seen := make(map[string]struct{}, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("quiz question %d ID is required", i)
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("quiz question ID %q is duplicated", question.ID)
		}
		seen[question.ID] = struct{}{}
		if question.Answer == "" {
			return fmt.Errorf("quiz question %q Answer is required", question.ID)
		}
	}

	return nil
}
