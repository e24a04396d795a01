package service

import (
	"math"
	"strings"

	"github.com/cloo-solutions/aura/internal/domain"
)

// Grade scores attempt against key on a 0-10 scale. Every question weighs the
// same; unanswered questions and answers to unknown ids count as incorrect.
// Answers match after trimming whitespace, ignoring case.
func Grade(attempt *domain.QuizAttempt, key domain.AnswerKey) (*domain.GradingResult, error) {
	total := len(key)
	if total == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	if attempt == nil || len(attempt.Answers) == 0 {
		return nil, domain.ErrEmptyAttempt
	}

	correct := 0
	for questionID, expected := range key {
		given, ok := attempt.Answers[questionID]
		if ok && answersMatch(given, expected) {
			correct++
		}
	}

	return &domain.GradingResult{
		AttemptID:      attempt.AttemptID,
		Score:          int(math.Round(float64(correct) / float64(total) * domain.MaxQuizScore)),
		CorrectCount:   correct,
		TotalQuestions: total,
	}, nil
}

func answersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}
