package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/scibot/internal/database"
	"github.com/example/scibot/internal/spaced_repetition"
	"github.com/example/scibot/pkg/models"
)

// WeakRetention is the retention below which a concept counts as weak in statistics.
const WeakRetention = 0.4

var (
	// ErrUnknownConcept is returned when a review names a concept that does not exist.
	ErrUnknownConcept = errors.New("review: unknown concept")
	// ErrInvalidSettings is returned for out-of-range notification settings.
	ErrInvalidSettings = errors.New("review: invalid notification settings")
)

// Service persists review events. It owns the transaction around each
// retention update and serializes updates per learner.
type Service struct {
	db      *database.DB
	updater *spaced_repetition.RetentionUpdater
	now     func() time.Time
	locks   *learnerLocks
	logger  *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for reviews, due dates and statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a review service over db.
func NewService(db *database.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  newLearnerLocks(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updater = spaced_repetition.NewRetentionUpdater(spaced_repetition.WithClock(s.now))
	return s
}

// Result is the outcome of one review.
type Result struct {
	Subject models.ReviewSubject  `json:"subject"`
	Learner models.LearnerState   `json:"learner"`
	Log     models.ReviewLogEntry `json:"log"`
}

// EnsureLearner returns the learner for a telegram id, creating one on first contact.
func (s *Service) EnsureLearner(ctx context.Context, telegramID int64, username string) (*models.Learner, error) {
	l, created, err := database.NewLearnerRepository(s.db).GetOrCreateByTelegramID(ctx, telegramID, username)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("learner created", "learner", l.ID, "telegram_id", telegramID)
	}
	return l, nil
}

// Learner returns a learner by id.
func (s *Service) Learner(ctx context.Context, learnerID uuid.UUID) (*models.Learner, error) {
	return database.NewLearnerRepository(s.db).GetByID(ctx, learnerID)
}

// LearnersForNotification returns learners with reminders enabled for the given UTC hour.
func (s *Service) LearnersForNotification(ctx context.Context, hour int) ([]models.Learner, error) {
	return database.NewLearnerRepository(s.db).ListForNotification(ctx, hour)
}

// UpdateNotifications changes a learner's reminder settings.
func (s *Service) UpdateNotifications(ctx context.Context, learnerID uuid.UUID, enabled bool, hour, reviewsPerDay int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidSettings, hour)
	}
	if reviewsPerDay < 1 {
		return fmt.Errorf("%w: reviews per day %d", ErrInvalidSettings, reviewsPerDay)
	}
	return database.NewLearnerRepository(s.db).UpdateNotificationSettings(ctx, learnerID, enabled, hour, reviewsPerDay)
}

// Enroll starts tracking a concept for a learner at the default retention,
// due immediately. A concept the learner already tracks is left untouched;
// the boolean reports whether tracking started now.
func (s *Service) Enroll(ctx context.Context, learnerID uuid.UUID, name, description string) (*models.Concept, bool, error) {
	unlock := s.locks.lock(learnerID)
	defer unlock()

	var (
		concept *models.Concept
		started bool
	)
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := database.NewLearnerRepository(tx).GetByID(ctx, learnerID); err != nil {
			return err
		}
		c, _, err := database.NewConceptRepository(tx).GetOrCreate(ctx, name, description)
		if err != nil {
			return err
		}
		concept = c
		started, err = database.NewKnowledgeRepository(tx).CreateIfMissing(ctx, models.NewReviewSubject(learnerID, c.ID, s.now()))
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("enroll %q: %w", name, err)
	}

	if started {
		s.logger.Debug("concept enrolled", "learner", learnerID, "concept", concept.ID, "name", concept.Name)
	}
	return concept, started, nil
}

// Review applies one quality-scored recall attempt and persists the updated
// retention, decay coefficient and audit entry in a single transaction.
// A concept the learner has never tracked starts from the default retention.
func (s *Service) Review(ctx context.Context, learnerID uuid.UUID, conceptID int64, quality float64) (*Result, error) {
	unlock := s.locks.lock(learnerID)
	defer unlock()

	var result Result
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		learners := database.NewLearnerRepository(tx)
		knowledge := database.NewKnowledgeRepository(tx)

		state, err := learners.GetState(ctx, learnerID)
		if err != nil {
			return err
		}

		subject, err := knowledge.Get(ctx, learnerID, conceptID)
		if errors.Is(err, database.ErrNotFound) {
			if _, err := database.NewConceptRepository(tx).GetByID(ctx, conceptID); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("%w: %d", ErrUnknownConcept, conceptID)
				}
				return err
			}
			fresh := models.NewReviewSubject(learnerID, conceptID, s.now())
			subject = &fresh
		} else if err != nil {
			return err
		}

		next, nextState, entry, err := s.updater.Update(subject, &state, quality)
		if err != nil {
			return err
		}

		if err := knowledge.Upsert(ctx, next); err != nil {
			return err
		}
		if err := learners.UpdateDecayCoefficient(ctx, learnerID, nextState.DecayCoefficient); err != nil {
			return err
		}
		if err := database.NewRetentionLogRepository(tx).Append(ctx, &entry); err != nil {
			return err
		}

		result = Result{Subject: next, Learner: nextState, Log: entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("review concept %d: %w", conceptID, err)
	}

	s.logger.Info("review applied",
		"learner", learnerID,
		"concept", conceptID,
		"quality", quality,
		"pass", spaced_repetition.IsPass(quality),
		"retention", fmt.Sprintf("%.3f -> %.3f", result.Log.RetentionBefore, result.Log.RetentionAfter),
		"lambda", fmt.Sprintf("%.3f -> %.3f", result.Log.OldLambda, result.Log.NewLambda),
		"interval_days", result.Log.IntervalDays,
		"mastered", spaced_repetition.IsMastered(result.Subject),
	)
	return &result, nil
}

// Concept returns a concept by id.
func (s *Service) Concept(ctx context.Context, conceptID int64) (*models.Concept, error) {
	return database.NewConceptRepository(s.db).GetByID(ctx, conceptID)
}

// Due returns up to limit concepts due for review, most urgent first.
func (s *Service) Due(ctx context.Context, learnerID uuid.UUID, limit int) ([]models.KnowledgeItem, error) {
	if _, err := s.Learner(ctx, learnerID); err != nil {
		return nil, err
	}
	now := s.now()
	items, err := database.NewKnowledgeRepository(s.db).ListDue(ctx, learnerID, now, 0)
	if err != nil {
		return nil, err
	}
	return spaced_repetition.RankDue(items, now, limit), nil
}

// Knowledge returns everything the learner tracks, soonest review first.
func (s *Service) Knowledge(ctx context.Context, learnerID uuid.UUID) ([]models.KnowledgeItem, error) {
	return database.NewKnowledgeRepository(s.db).ListWithConcepts(ctx, learnerID, 0, 0)
}

// Stats summarises a learner's knowledge.
func (s *Service) Stats(ctx context.Context, learnerID uuid.UUID) (models.Statistics, error) {
	learner, err := s.Learner(ctx, learnerID)
	if err != nil {
		return models.Statistics{}, err
	}

	now := s.now()
	knowledge := database.NewKnowledgeRepository(s.db)
	stats := models.Statistics{DecayCoefficient: learner.State().DecayCoefficient}

	mastery, weak := spaced_repetition.MasteryRetention, WeakRetention
	if stats.TotalConcepts, err = knowledge.CountByLearner(ctx, learnerID, nil, nil); err != nil {
		return models.Statistics{}, err
	}
	if stats.DueConcepts, err = knowledge.CountDue(ctx, learnerID, now); err != nil {
		return models.Statistics{}, err
	}
	if stats.StrongConcepts, err = knowledge.CountByLearner(ctx, learnerID, &mastery, nil); err != nil {
		return models.Statistics{}, err
	}
	if stats.WeakConcepts, err = knowledge.CountByLearner(ctx, learnerID, nil, &weak); err != nil {
		return models.Statistics{}, err
	}
	if stats.AverageRetention, err = knowledge.AvgRetention(ctx, learnerID); err != nil {
		return models.Statistics{}, err
	}
	stats.ReviewsLastWeek, err = database.NewRetentionLogRepository(s.db).CountByLearnerAndPeriod(ctx, learnerID, now.AddDate(0, 0, -7), now)
	if err != nil {
		return models.Statistics{}, err
	}
	return stats, nil
}

// Logs returns the learner's audit trail within [from, to].
func (s *Service) Logs(ctx context.Context, learnerID uuid.UUID, from, to time.Time) ([]models.ReviewLogEntry, error) {
	return database.NewRetentionLogRepository(s.db).ListByLearner(ctx, learnerID, from, to)
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}
