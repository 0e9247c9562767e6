package spaced_repetition

import (
	"fmt"
	"math"
	"time"

	"github.com/example/scibot/pkg/models"
)

const (
	// PassThreshold is the lowest quality treated as a successful recall.
	PassThreshold = 0.6

	// MinRetention and MaxRetention bound a subject's retention after every update.
	MinRetention = 0.1
	MaxRetention = 0.99

	// MinDecayCoefficient and MaxDecayCoefficient bound a learner's λ after every update.
	MinDecayCoefficient = 0.1
	MaxDecayCoefficient = 0.9

	passLambdaFactor    = 0.9
	failLambdaFactor    = 1.1
	failRetentionFactor = 0.5

	// intervalScale turns the forgotten share (1 - r) into days.
	intervalScale = 10
	minInterval   = 1
)

// RetentionUpdater updates retention and decay coefficient after a review and
// computes the next review date.
type RetentionUpdater struct {
	now func() time.Time
}

// Option configures a RetentionUpdater.
type Option func(*RetentionUpdater)

// WithClock replaces the wall clock used to stamp reviews.
func WithClock(now func() time.Time) Option {
	return func(u *RetentionUpdater) {
		u.now = now
	}
}

// NewRetentionUpdater creates an updater that uses the UTC wall clock unless told otherwise.
func NewRetentionUpdater(opts ...Option) *RetentionUpdater {
	u := &RetentionUpdater{now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update applies one review of the given quality. The inputs are not mutated;
// the updated subject, learner state and the audit entry are returned.
//
// Quality is not validated: any value >= PassThreshold is a pass, anything
// else (including NaN) is a fail.
func (u *RetentionUpdater) Update(subject *models.ReviewSubject, learner *models.LearnerState, quality float64) (models.ReviewSubject, models.LearnerState, models.ReviewLogEntry, error) {
	if err := validate(subject, learner); err != nil {
		return models.ReviewSubject{}, models.LearnerState{}, models.ReviewLogEntry{}, err
	}

	now := u.now().UTC()
	r := subject.Retention
	lambda := learner.DecayCoefficient

	var newRetention, newLambda float64
	if quality >= PassThreshold {
		newRetention = r + (1-r)*lambda
		newLambda = lambda * passLambdaFactor
	} else {
		newRetention = r * failRetentionFactor
		newLambda = lambda * failLambdaFactor
	}
	newLambda = clamp(newLambda, MinDecayCoefficient, MaxDecayCoefficient)
	newRetention = clamp(newRetention, MinRetention, MaxRetention)

	interval := IntervalDays(newRetention)

	nextSubject := *subject
	nextSubject.Retention = newRetention
	nextSubject.LastReviewed = &now
	nextSubject.NextReview = now.AddDate(0, 0, interval)

	nextLearner := *learner
	nextLearner.DecayCoefficient = newLambda

	entry := models.ReviewLogEntry{
		LearnerID:       learner.LearnerID,
		ConceptID:       subject.ConceptID,
		Quality:         quality,
		OldLambda:       lambda,
		NewLambda:       newLambda,
		RetentionBefore: r,
		RetentionAfter:  newRetention,
		IntervalDays:    interval,
		Timestamp:       now,
	}

	return nextSubject, nextLearner, entry, nil
}

// IntervalDays returns the review interval for a retention value:
// max(1, floor(10 * (1 - r))). There is no upper bound.
func IntervalDays(retention float64) int {
	days := int(math.Floor(intervalScale * (1 - retention)))
	if days < minInterval {
		return minInterval
	}
	return days
}

// IsPass reports whether a quality score counts as a successful recall.
func IsPass(quality float64) bool {
	return quality >= PassThreshold
}

func validate(subject *models.ReviewSubject, learner *models.LearnerState) error {
	if subject == nil {
		return &InvalidInputError{Field: "subject", Reason: "missing"}
	}
	if learner == nil {
		return &InvalidInputError{Field: "learner", Reason: "missing"}
	}
	if !inRange(subject.Retention, MinRetention, MaxRetention) {
		return &InvalidInputError{
			Field:  "retention",
			Value:  subject.Retention,
			Reason: fmt.Sprintf("outside [%v, %v]", MinRetention, MaxRetention),
		}
	}
	if !inRange(learner.DecayCoefficient, MinDecayCoefficient, MaxDecayCoefficient) {
		return &InvalidInputError{
			Field:  "decay_coefficient",
			Value:  learner.DecayCoefficient,
			Reason: fmt.Sprintf("outside [%v, %v]", MinDecayCoefficient, MaxDecayCoefficient),
		}
	}
	return nil
}

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
