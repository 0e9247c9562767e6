package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/scibot/pkg/models"
)

// KnowledgeRepository handles database operations for a learner's per-concept retention
type KnowledgeRepository struct {
	db sqlx.ExtContext
}

// NewKnowledgeRepository creates a new repository bound to a pool or a transaction
func NewKnowledgeRepository(db sqlx.ExtContext) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Get returns the review subject for a learner and concept
func (r *KnowledgeRepository) Get(ctx context.Context, learnerID uuid.UUID, conceptID int64) (*models.ReviewSubject, error) {
	var s models.ReviewSubject
	query := r.db.Rebind(`
		SELECT learner_id, concept_id, retention, last_reviewed, next_review
		FROM user_knowledge
		WHERE learner_id = ? AND concept_id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &s, query, learnerID, conceptID); err != nil {
		return nil, notFound(err, "failed to get knowledge of concept %d", conceptID)
	}
	return &s, nil
}

// CreateIfMissing inserts a review subject unless the learner already tracks
// the concept. The boolean reports whether a row was inserted.
func (r *KnowledgeRepository) CreateIfMissing(ctx context.Context, s models.ReviewSubject) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO user_knowledge (learner_id, concept_id, retention, last_reviewed, next_review)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (learner_id, concept_id) DO NOTHING`)
	result, err := r.db.ExecContext(ctx, query, s.LearnerID, s.ConceptID, s.Retention, s.LastReviewed, s.NextReview)
	if err != nil {
		return false, fmt.Errorf("failed to create knowledge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Upsert creates or replaces the review subject
func (r *KnowledgeRepository) Upsert(ctx context.Context, s models.ReviewSubject) error {
	query := r.db.Rebind(`
		INSERT INTO user_knowledge (learner_id, concept_id, retention, last_reviewed, next_review)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (learner_id, concept_id) DO UPDATE SET
			retention = excluded.retention,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review`)
	if _, err := r.db.ExecContext(ctx, query, s.LearnerID, s.ConceptID, s.Retention, s.LastReviewed, s.NextReview); err != nil {
		return fmt.Errorf("failed to save knowledge: %w", err)
	}
	return nil
}

// ListWithConcepts returns the learner's knowledge with concept names, soonest
// review first. A non-positive limit returns everything.
func (r *KnowledgeRepository) ListWithConcepts(ctx context.Context, learnerID uuid.UUID, limit int, minRetention float64) ([]models.KnowledgeItem, error) {
	query := `
		SELECT k.learner_id, k.concept_id, k.retention, k.last_reviewed, k.next_review, c.name AS concept_name, c.description AS concept_description
		FROM user_knowledge k
		JOIN concepts c ON c.id = k.concept_id
		WHERE k.learner_id = ? AND k.retention >= ?
		ORDER BY k.next_review ASC, k.concept_id ASC`
	args := []interface{}{learnerID, minRetention}
	return r.selectItems(ctx, query, args, limit)
}

// ListDue returns the learner's knowledge due at or before now, soonest review first
func (r *KnowledgeRepository) ListDue(ctx context.Context, learnerID uuid.UUID, now time.Time, limit int) ([]models.KnowledgeItem, error) {
	query := `
		SELECT k.learner_id, k.concept_id, k.retention, k.last_reviewed, k.next_review, c.name AS concept_name, c.description AS concept_description
		FROM user_knowledge k
		JOIN concepts c ON c.id = k.concept_id
		WHERE k.learner_id = ? AND k.next_review <= ?
		ORDER BY k.next_review ASC, k.concept_id ASC`
	args := []interface{}{learnerID, now.UTC()}
	return r.selectItems(ctx, query, args, limit)
}

func (r *KnowledgeRepository) selectItems(ctx context.Context, query string, args []interface{}, limit int) ([]models.KnowledgeItem, error) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var items []models.KnowledgeItem
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	return items, nil
}

// CountByLearner counts the learner's concepts with retention in [min, max).
// Nil bounds are open.
func (r *KnowledgeRepository) CountByLearner(ctx context.Context, learnerID uuid.UUID, min, max *float64) (int, error) {
	query := `SELECT COUNT(*) FROM user_knowledge WHERE learner_id = ?`
	args := []interface{}{learnerID}
	if min != nil {
		query += " AND retention >= ?"
		args = append(args, *min)
	}
	if max != nil {
		query += " AND retention < ?"
		args = append(args, *max)
	}
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count knowledge: %w", err)
	}
	return count, nil
}

// CountDue counts the learner's concepts due at or before now
func (r *KnowledgeRepository) CountDue(ctx context.Context, learnerID uuid.UUID, now time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM user_knowledge WHERE learner_id = ? AND next_review <= ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, learnerID, now.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count due knowledge: %w", err)
	}
	return count, nil
}

// AvgRetention returns the learner's mean retention, 0 when nothing is tracked
func (r *KnowledgeRepository) AvgRetention(ctx context.Context, learnerID uuid.UUID) (float64, error) {
	var avg float64
	query := r.db.Rebind(`SELECT COALESCE(AVG(retention), 0) FROM user_knowledge WHERE learner_id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &avg, query, learnerID); err != nil {
		return 0, fmt.Errorf("failed to average retention: %w", err)
	}
	return avg, nil
}

// CountReviewedInPeriod counts concepts whose last review falls within [start, end]
func (r *KnowledgeRepository) CountReviewedInPeriod(ctx context.Context, learnerID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM user_knowledge
		WHERE learner_id = ? AND last_reviewed >= ? AND last_reviewed <= ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, learnerID, start.UTC(), end.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count reviewed knowledge: %w", err)
	}
	return count, nil
}
