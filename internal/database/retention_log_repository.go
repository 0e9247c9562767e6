package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/scibot/pkg/models"
)

const retentionLogColumns = `id, learner_id, concept_id, quality, old_lambda, new_lambda,
	retention_before, retention_after, interval_days, timestamp`

// RetentionLogRepository appends and reads the retention audit trail.
// Entries are never updated or deleted here.
type RetentionLogRepository struct {
	db sqlx.ExtContext
}

// NewRetentionLogRepository creates a new repository bound to a pool or a transaction
func NewRetentionLogRepository(db sqlx.ExtContext) *RetentionLogRepository {
	return &RetentionLogRepository{db: db}
}

// Append stores a log entry and sets its id
func (r *RetentionLogRepository) Append(ctx context.Context, e *models.ReviewLogEntry) error {
	query := r.db.Rebind(`
		INSERT INTO retention_logs (
			learner_id, concept_id, quality, old_lambda, new_lambda,
			retention_before, retention_after, interval_days, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query,
		e.LearnerID,
		e.ConceptID,
		e.Quality,
		e.OldLambda,
		e.NewLambda,
		e.RetentionBefore,
		e.RetentionAfter,
		e.IntervalDays,
		e.Timestamp.UTC(),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to append retention log: %w", err)
	}
	return nil
}

// ListByLearner returns the learner's entries within [from, to], oldest first
func (r *RetentionLogRepository) ListByLearner(ctx context.Context, learnerID uuid.UUID, from, to time.Time) ([]models.ReviewLogEntry, error) {
	var entries []models.ReviewLogEntry
	query := r.db.Rebind(`
		SELECT ` + retentionLogColumns + `
		FROM retention_logs
		WHERE learner_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, id ASC`)
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, learnerID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list retention logs: %w", err)
	}
	return entries, nil
}

// CountByLearnerAndPeriod counts the learner's reviews within [start, end]
func (r *RetentionLogRepository) CountByLearnerAndPeriod(ctx context.Context, learnerID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM retention_logs
		WHERE learner_id = ? AND timestamp >= ? AND timestamp <= ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, learnerID, start.UTC(), end.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count retention logs: %w", err)
	}
	return count, nil
}
