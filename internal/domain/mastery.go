package domain

import (
	"fmt"
	"time"
)

// MasteryStatus represents a learner's standing on a topic
type MasteryStatus string

const (
	MasteryStatusNew       MasteryStatus = "New"
	MasteryStatusWeak      MasteryStatus = "Weak"
	MasteryStatusCompleted MasteryStatus = "Completed"
)

// MasteryHistoryEntry is one append-only audit row of a mastery record.
type MasteryHistoryEntry struct {
	Score     int           `json:"score"`
	Status    MasteryStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// MasteryRecord is the scheduling state for one (user, topic) pair.
type MasteryRecord struct {
	UserID             string
	TopicID            string
	Status             MasteryStatus
	LastScore          int
	ReviewIntervalDays int
	NextReviewDate     time.Time
	History            []MasteryHistoryEntry
	Version            int64
	UpdatedAt          time.Time
}

// MasteryPolicy holds the spaced-repetition constants.
type MasteryPolicy struct {
	BaseIntervalDays int
	GrowthFactor     float64
	PassThreshold    int
	// MaxIntervalDays caps growth; zero means DefaultMaxIntervalDays.
	MaxIntervalDays int
}

const DefaultMaxIntervalDays = 365

// IntervalCap returns the effective upper bound on ReviewIntervalDays.
func (p MasteryPolicy) IntervalCap() int {
	if p.MaxIntervalDays <= 0 {
		return DefaultMaxIntervalDays
	}
	return p.MaxIntervalDays
}

// DefaultMasteryPolicy returns base 1 day, growth 2.0, a strict pass above 7
// and intervals capped at a year.
func DefaultMasteryPolicy() MasteryPolicy {
	return MasteryPolicy{
		BaseIntervalDays: 1,
		GrowthFactor:     2.0,
		PassThreshold:    7,
		MaxIntervalDays:  DefaultMaxIntervalDays,
	}
}

// NewMasteryRecord creates the record used for a first attempt.
func NewMasteryRecord(userID, topicID string, policy MasteryPolicy) *MasteryRecord {
	return &MasteryRecord{
		UserID:             userID,
		TopicID:            topicID,
		Status:             MasteryStatusNew,
		ReviewIntervalDays: policy.BaseIntervalDays,
	}
}

// Clone returns a deep copy of the record.
func (r *MasteryRecord) Clone() *MasteryRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.History = append([]MasteryHistoryEntry(nil), r.History...)
	return &c
}

// ValidateMasteryPolicy validates a MasteryPolicy instance
func ValidateMasteryPolicy(p MasteryPolicy) error {
	if p.BaseIntervalDays < 1 {
		return fmt.Errorf("mastery policy BaseIntervalDays must be at least 1")
	}
	if p.GrowthFactor < 1 {
		return fmt.Errorf("mastery policy GrowthFactor must be at least 1")
	}
	if p.MaxIntervalDays != 0 && p.MaxIntervalDays < p.BaseIntervalDays {
		return fmt.Errorf("mastery policy MaxIntervalDays must be at least BaseIntervalDays")
	}
	if p.PassThreshold < 0 || p.PassThreshold >= MaxQuizScore {
		return fmt.Errorf("mastery policy PassThreshold must be in [0, %d)", MaxQuizScore)
	}
	return nil
}

// ValidateMasteryRecord validates a MasteryRecord instance
func ValidateMasteryRecord(r *MasteryRecord) error {
	if r == nil {
		return fmt.Errorf("mastery record cannot be nil")
	}

	if r.UserID == "" {
		return fmt.Errorf("mastery record UserID is required")
	}

	if r.TopicID == "" {
		return fmt.Errorf("mastery record TopicID is required")
	}

	if !isValidMasteryStatus(r.Status) {
		return fmt.Errorf("mastery record Status is invalid: %s", r.Status)
	}

	if r.ReviewIntervalDays < 1 {
		return fmt.Errorf("mastery record ReviewIntervalDays must be at least 1")
	}

	return nil
}

// isValidMasteryStatus checks if a MasteryStatus is valid
func isValidMasteryStatus(s MasteryStatus) bool {
	switch s {
	case MasteryStatusNew, MasteryStatusWeak, MasteryStatusCompleted:
		return true
	}
	return false
}
