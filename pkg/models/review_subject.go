package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is the retention assigned to a concept the learner has never reviewed.
const DefaultRetention = 0.5

// ReviewSubject tracks a learner's retention of a single concept
type ReviewSubject struct {
	LearnerID    uuid.UUID  `json:"learner_id" db:"learner_id"`
	ConceptID    int64      `json:"concept_id" db:"concept_id"`
	Retention    float64    `json:"retention" db:"retention"`         // Estimated probability of recall
	LastReviewed *time.Time `json:"last_reviewed" db:"last_reviewed"` // nil until the first review
	NextReview   time.Time  `json:"next_review" db:"next_review"`
}

// NewReviewSubject returns a never-reviewed subject at the default retention, due at the given time.
func NewReviewSubject(learnerID uuid.UUID, conceptID int64, due time.Time) ReviewSubject {
	return ReviewSubject{
		LearnerID:  learnerID,
		ConceptID:  conceptID,
		Retention:  DefaultRetention,
		NextReview: due,
	}
}

// KnowledgeItem is a review subject joined with its concept
type KnowledgeItem struct {
	ReviewSubject
	ConceptName        string `json:"concept_name" db:"concept_name"`
	ConceptDescription string `json:"concept_description" db:"concept_description"`
}
