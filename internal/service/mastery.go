package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/pagination"
	"github.com/cloo-solutions/aura/internal/telemetry"
)

// MasteryRepository persists mastery records with versioned writes. Save
// succeeds only when the stored version equals expectedVersion (0 for a new
// record) and stores expectedVersion+1.
type MasteryRepository interface {
	Get(ctx context.Context, userID, topicID string) (*domain.MasteryRecord, error)
	Save(ctx context.Context, rec *domain.MasteryRecord, expectedVersion int64) error
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*MasteryPageResult, error)
	ListDue(ctx context.Context, userID string, asOf time.Time) ([]*domain.MasteryRecord, error)
}

type MasteryPageResult struct {
	Items      []*domain.MasteryRecord
	NextCursor string
	HasMore    bool
}

// Notifier receives quiz results after the mastery record is committed.
// Enqueue must not block.
type Notifier interface {
	Enqueue(event domain.QuizResultEvent) bool
}

// Recipient addresses the result notification of one attempt.
type Recipient struct {
	Email      string
	TopicTitle string
}

type ListProgressInput struct {
	UserID string
	Cursor string
	Limit  int
}

type ListProgressOutput struct {
	Items   []*domain.MasteryRecord
	Cursor  string
	HasMore bool
}

// MasteryService applies grading results to mastery records.
type MasteryService struct {
	repo     MasteryRepository
	notifier Notifier
	policy   domain.MasteryPolicy
	locks    *KeyedMutex
	now      func() time.Time
}

// NewMasteryService creates a new MasteryService instance
func NewMasteryService(repo MasteryRepository, notifier Notifier, policy domain.MasteryPolicy) *MasteryService {
	return &MasteryService{
		repo:     repo,
		notifier: notifier,
		policy:   policy,
		locks:    NewKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the spaced-repetition constants in use.
func (s *MasteryService) Policy() domain.MasteryPolicy {
	return s.policy
}

// ApplyResult computes the record that follows prev after result. A pass is a
// score strictly above the threshold and multiplies the interval by the growth
// factor up to the policy cap; a failure resets it to the base interval.
// prev is not modified.
func ApplyResult(prev *domain.MasteryRecord, result domain.GradingResult, policy domain.MasteryPolicy, submittedAt, now time.Time) *domain.MasteryRecord {
	next := prev.Clone()

	if result.Score > policy.PassThreshold {
		next.Status = domain.MasteryStatusCompleted
		grown := math.Round(float64(prev.ReviewIntervalDays) * policy.GrowthFactor)
		next.ReviewIntervalDays = int(math.Min(float64(policy.IntervalCap()), math.Max(1, grown)))
	} else {
		next.Status = domain.MasteryStatusWeak
		next.ReviewIntervalDays = policy.BaseIntervalDays
	}

	from := now
	if submittedAt.After(from) {
		from = submittedAt
	}
	next.LastScore = result.Score
	next.NextReviewDate = from.AddDate(0, 0, next.ReviewIntervalDays)
	next.UpdatedAt = now
	next.History = append(next.History, domain.MasteryHistoryEntry{
		Score:     result.Score,
		Status:    next.Status,
		Timestamp: submittedAt,
	})

	return next
}

// RecordResult updates the (user, topic) record for a graded attempt and then
// hands the result to the notifier. Concurrent attempts on the same pair are
// serialized here and by the versioned write in storage.
func (s *MasteryService) RecordResult(ctx context.Context, attempt *domain.QuizAttempt, result *domain.GradingResult, to Recipient) (*domain.MasteryRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "MasteryService.RecordResult", telemetry.SpanAttributes{
		UserID:    attempt.UserID,
		TopicID:   attempt.TopicID,
		Operation: "record",
	})
	defer span.End()

	if attempt.UserID == "" || attempt.TopicID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "attempt user id and topic id are required")
	}

	unlock, err := s.locks.Lock(ctx, attempt.UserID+"\x00"+attempt.TopicID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	submittedAt := attempt.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = s.now()
	}

	var committed *domain.MasteryRecord
	for i := 0; i < maxSaveAttempts && committed == nil; i++ {
		prev, err := s.repo.Get(ctx, attempt.UserID, attempt.TopicID)
		if errors.Is(err, domain.ErrMasteryNotFound) {
			prev = domain.NewMasteryRecord(attempt.UserID, attempt.TopicID, s.policy)
		} else if err != nil {
			return nil, fmt.Errorf("load mastery record: %w", err)
		}

		next := ApplyResult(prev, *result, s.policy, submittedAt, s.now())
		err = s.repo.Save(ctx, next, prev.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save mastery record: %w", err)
		}
		next.Version = prev.Version + 1
		committed = next
	}
	if committed == nil {
		return nil, domain.ErrVersionConflict
	}

	if s.notifier != nil {
		s.notifier.Enqueue(domain.QuizResultEvent{
			Recipient:      to.Email,
			UserID:         committed.UserID,
			TopicID:        committed.TopicID,
			TopicTitle:     to.TopicTitle,
			AttemptID:      result.AttemptID,
			Score:          result.Score,
			TotalQuestions: result.TotalQuestions,
			CorrectAnswers: result.CorrectCount,
			Status:         committed.Status,
			NextReviewDate: committed.NextReviewDate,
		})
	}

	return committed, nil
}

// Get returns the record of one topic.
func (s *MasteryService) Get(ctx context.Context, userID, topicID string) (*domain.MasteryRecord, error) {
	return s.repo.Get(ctx, userID, topicID)
}

// ListProgress pages through a user's records, most recently updated first.
func (s *MasteryService) ListProgress(ctx context.Context, input ListProgressInput) (*ListProgressOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "MasteryService.ListProgress", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidParameter, "invalid cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	result, err := s.repo.ListByUserWithCursor(ctx, input.UserID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListProgressOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// DueReviews returns records whose next review is at or before asOf.
func (s *MasteryService) DueReviews(ctx context.Context, userID string, asOf time.Time) ([]*domain.MasteryRecord, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.repo.ListDue(ctx, userID, asOf)
}
