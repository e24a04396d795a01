package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/pagination"
	"github.com/cloo-solutions/aura/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MasteryRepository struct {
	db dbtx
}

func NewMasteryRepository(pool *pgxpool.Pool) *MasteryRepository {
	return &MasteryRepository{db: pool}
}

const masteryColumns = `user_id, topic_id, status, last_score, review_interval_days, next_review_date, history, version, updated_at`

func (r *MasteryRepository) Get(ctx context.Context, userID, topicID string) (*domain.MasteryRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+masteryColumns+` FROM mastery_records WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID,
	)
	if err != nil {
		return nil, err
	}
	records, err := scanMasteryRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrMasteryNotFound
	}
	return records[0], nil
}

// Save writes rec as version expectedVersion+1. A stored version other than
// expectedVersion, or an existing row when expectedVersion is 0, is a conflict.
func (r *MasteryRepository) Save(ctx context.Context, rec *domain.MasteryRecord, expectedVersion int64) error {
	history, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if expectedVersion == 0 {
		cmdTag, err := r.db.Exec(ctx,
			`INSERT INTO mastery_records (`+masteryColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
			 ON CONFLICT (user_id, topic_id) DO NOTHING`,
			rec.UserID, rec.TopicID, rec.Status, rec.LastScore, rec.ReviewIntervalDays,
			rec.NextReviewDate, history, updatedAt,
		)
		if err != nil {
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			return domain.ErrVersionConflict
		}
		return nil
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE mastery_records
		 SET status = $3, last_score = $4, review_interval_days = $5, next_review_date = $6,
		     history = $7, version = version + 1, updated_at = $8
		 WHERE user_id = $1 AND topic_id = $2 AND version = $9`,
		rec.UserID, rec.TopicID, rec.Status, rec.LastScore, rec.ReviewIntervalDays,
		rec.NextReviewDate, history, updatedAt, expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// ListByUserWithCursor pages by (updated_at, topic_id) descending.
func (r *MasteryRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.MasteryPageResult, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+masteryColumns+`
			 FROM mastery_records
			 WHERE user_id = $1 AND (updated_at, topic_id) < ($2, $3)
			 ORDER BY updated_at DESC, topic_id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.Key, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+masteryColumns+`
			 FROM mastery_records
			 WHERE user_id = $1
			 ORDER BY updated_at DESC, topic_id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}

	records, err := scanMasteryRecords(rows)
	if err != nil {
		return nil, err
	}

	items, next, hasMore := pagination.Trim(records, limit, func(rec *domain.MasteryRecord) (string, time.Time) {
		return rec.TopicID, rec.UpdatedAt
	})
	return &service.MasteryPageResult{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

func (r *MasteryRepository) ListDue(ctx context.Context, userID string, asOf time.Time) ([]*domain.MasteryRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+masteryColumns+`
		 FROM mastery_records
		 WHERE user_id = $1 AND next_review_date <= $2
		 ORDER BY next_review_date ASC, topic_id ASC`,
		userID, asOf,
	)
	if err != nil {
		return nil, err
	}
	return scanMasteryRecords(rows)
}

func scanMasteryRecords(rows pgx.Rows) ([]*domain.MasteryRecord, error) {
	defer rows.Close()

	records := []*domain.MasteryRecord{}
	for rows.Next() {
		var rec domain.MasteryRecord
		var history []byte
		if err := rows.Scan(&rec.UserID, &rec.TopicID, &rec.Status, &rec.LastScore, &rec.ReviewIntervalDays,
			&rec.NextReviewDate, &history, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(history, &rec.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
