package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewLogEntry is the immutable audit record of one retention update
type ReviewLogEntry struct {
	ID              int64     `json:"id" db:"id"`
	LearnerID       uuid.UUID `json:"learner_id" db:"learner_id"`
	ConceptID       int64     `json:"concept_id" db:"concept_id"`
	Quality         float64   `json:"quality" db:"quality"`
	OldLambda       float64   `json:"old_lambda" db:"old_lambda"`
	NewLambda       float64   `json:"new_lambda" db:"new_lambda"`
	RetentionBefore float64   `json:"retention_before" db:"retention_before"`
	RetentionAfter  float64   `json:"retention_after" db:"retention_after"`
	IntervalDays    int       `json:"interval_days" db:"interval_days"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}
