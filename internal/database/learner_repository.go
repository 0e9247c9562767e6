package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/scibot/pkg/models"
)

const learnerColumns = `id, telegram_id, username, lambda_coef, notification_enabled,
	notification_hour, reviews_per_day, created_at, updated_at`

// LearnerRepository handles database operations for learners
type LearnerRepository struct {
	db sqlx.ExtContext
}

// NewLearnerRepository creates a new repository bound to a pool or a transaction
func NewLearnerRepository(db sqlx.ExtContext) *LearnerRepository {
	return &LearnerRepository{db: db}
}

// Create inserts a learner, generating an id when none is set
func (r *LearnerRepository) Create(ctx context.Context, l *models.Learner) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.ReviewsPerDay == 0 {
		l.ReviewsPerDay = 10
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO learners (` + learnerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.TelegramID, l.Username, l.LambdaCoef, l.NotificationEnabled,
		l.NotificationHour, l.ReviewsPerDay, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create learner: %w", err)
	}
	return nil
}

// GetByID returns a learner by id
func (r *LearnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Learner, error) {
	var l models.Learner
	query := r.db.Rebind(`SELECT ` + learnerColumns + ` FROM learners WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &l, query, id); err != nil {
		return nil, notFound(err, "failed to get learner %s", id)
	}
	return &l, nil
}

// GetByTelegramID returns a learner by telegram id
func (r *LearnerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Learner, error) {
	var l models.Learner
	query := r.db.Rebind(`SELECT ` + learnerColumns + ` FROM learners WHERE telegram_id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &l, query, telegramID); err != nil {
		return nil, notFound(err, "failed to get learner by telegram id %d", telegramID)
	}
	return &l, nil
}

// GetOrCreateByTelegramID returns the learner for a telegram id, creating one if needed.
// The boolean reports whether a learner was created.
func (r *LearnerRepository) GetOrCreateByTelegramID(ctx context.Context, telegramID int64, username string) (*models.Learner, bool, error) {
	l, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return l, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	l = &models.Learner{
		TelegramID:          sql.NullInt64{Int64: telegramID, Valid: true},
		Username:            username,
		NotificationEnabled: true,
		NotificationHour:    9,
	}
	if err := r.Create(ctx, l); err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// GetState returns the scheduling state of a learner, applying the default
// decay coefficient when the learner has never been reviewed.
func (r *LearnerRepository) GetState(ctx context.Context, id uuid.UUID) (models.LearnerState, error) {
	l, err := r.GetByID(ctx, id)
	if err != nil {
		return models.LearnerState{}, err
	}
	return l.State(), nil
}

// UpdateDecayCoefficient stores a learner's new decay coefficient
func (r *LearnerRepository) UpdateDecayCoefficient(ctx context.Context, id uuid.UUID, lambda float64) error {
	query := r.db.Rebind(`UPDATE learners SET lambda_coef = ?, updated_at = ? WHERE id = ?`)
	return r.updateOne(ctx, query, lambda, time.Now().UTC(), id)
}

// UpdateNotificationSettings changes when and how much a learner is reminded
func (r *LearnerRepository) UpdateNotificationSettings(ctx context.Context, id uuid.UUID, enabled bool, hour, reviewsPerDay int) error {
	query := r.db.Rebind(`
		UPDATE learners
		SET notification_enabled = ?, notification_hour = ?, reviews_per_day = ?, updated_at = ?
		WHERE id = ?`)
	return r.updateOne(ctx, query, enabled, hour, reviewsPerDay, time.Now().UTC(), id)
}

// ListForNotification returns learners with reminders enabled for the given hour
func (r *LearnerRepository) ListForNotification(ctx context.Context, hour int) ([]models.Learner, error) {
	var learners []models.Learner
	query := r.db.Rebind(`
		SELECT ` + learnerColumns + ` FROM learners
		WHERE notification_enabled = ? AND notification_hour = ?
		ORDER BY created_at ASC`)
	if err := sqlx.SelectContext(ctx, r.db, &learners, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to get learners for notification: %w", err)
	}
	return learners, nil
}

func (r *LearnerRepository) updateOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("learner: %w", ErrNotFound)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps everything else.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
