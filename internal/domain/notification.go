package domain

import "time"

// QuizResultEvent is handed to the notification collaborator after a mastery
// record is committed.
type QuizResultEvent struct {
	Recipient      string
	UserID         string
	TopicID        string
	TopicTitle     string
	AttemptID      string
	Score          int
	TotalQuestions int
	CorrectAnswers int
	Status         MasteryStatus
	NextReviewDate time.Time
}

// Passed reports whether the attempt scored above the pass threshold.
func (e QuizResultEvent) Passed() bool {
	return e.Status == MasteryStatusCompleted
}
