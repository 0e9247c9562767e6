package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DefaultDecayCoefficient is the decay coefficient assumed for a learner with no review history.
const DefaultDecayCoefficient = 0.5

// Learner represents a person whose concept retention is being tracked
type Learner struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	TelegramID          sql.NullInt64   `json:"telegram_id" db:"telegram_id"`
	Username            string          `json:"username" db:"username"`
	LambdaCoef          sql.NullFloat64 `json:"lambda_coef" db:"lambda_coef"` // NULL until the first review
	NotificationEnabled bool            `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int             `json:"notification_hour" db:"notification_hour"` // Hour of day (UTC) for reminders
	ReviewsPerDay       int             `json:"reviews_per_day" db:"reviews_per_day"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// State returns the learner's scheduling state. This is the only place the
// default decay coefficient is applied to a stored learner.
func (l Learner) State() LearnerState {
	lambda := DefaultDecayCoefficient
	if l.LambdaCoef.Valid {
		lambda = l.LambdaCoef.Float64
	}
	return LearnerState{LearnerID: l.ID, DecayCoefficient: lambda}
}

// LearnerState is the per-learner input of the retention update
type LearnerState struct {
	LearnerID        uuid.UUID `json:"learner_id"`
	DecayCoefficient float64   `json:"decay_coefficient"`
}
