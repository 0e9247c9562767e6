package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/example/scibot/internal/config"
	"github.com/example/scibot/pkg/models"
)

// Default reminder window in UTC hours, inclusive.
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
)

// Source provides the learners and due concepts reminders are built from
type Source interface {
	Learner(ctx context.Context, learnerID uuid.UUID) (*models.Learner, error)
	LearnersForNotification(ctx context.Context, hour int) ([]models.Learner, error)
	Due(ctx context.Context, learnerID uuid.UUID, limit int) ([]models.KnowledgeItem, error)
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(ctx context.Context, learner models.Learner, due []models.KnowledgeItem) error
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    Source
	notifier  Notifier
	startHour int
	endHour   int
	now       func() time.Time
	logger    *log.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to pick the current hour.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a new scheduler instance
func New(source Source, notifier Notifier, cfg config.SchedulerConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		notifier:  notifier,
		startHour: cfg.StartHour,
		endHour:   cfg.EndHour,
		now:       time.Now,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the reminder check at the top of every hour without blocking
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron("0 * * * *").Do(func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("reminder run failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("reminder scheduler started", "window", fmt.Sprintf("%02d-%02d UTC", s.startHour, s.endHour))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// InWindow reports whether reminders may be sent at the given UTC hour.
// A window whose start is after its end wraps past midnight.
func (s *Scheduler) InWindow(hour int) bool {
	if s.startHour <= s.endHour {
		return hour >= s.startHour && hour <= s.endHour
	}
	return hour >= s.startHour || hour <= s.endHour
}

// RunOnce sends reminders to every learner scheduled for the current hour
// and returns how many were sent. Failures for one learner do not stop the rest.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	hour := s.now().UTC().Hour()
	if !s.InWindow(hour) {
		s.logger.Debug("outside notification hours, skipping reminders",
			"hour", hour, "start", s.startHour, "end", s.endHour)
		return 0, nil
	}

	learners, err := s.source.LearnersForNotification(ctx, hour)
	if err != nil {
		return 0, fmt.Errorf("failed to get learners for notification: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, learner := range learners {
		ok, err := s.remind(ctx, learner, learner.ReviewsPerDay)
		if err != nil {
			s.logger.Warn("reminder failed", "learner", learner.ID, "err", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			sent++
		}
	}
	s.logger.Info("reminders sent", "hour", hour, "learners", len(learners), "sent", sent)
	return sent, errors.Join(errs...)
}

// RunManualCheck sends one learner a reminder covering everything due,
// regardless of the hour. It reports whether a reminder was sent.
func (s *Scheduler) RunManualCheck(ctx context.Context, learnerID uuid.UUID) (bool, error) {
	learner, err := s.source.Learner(ctx, learnerID)
	if err != nil {
		return false, err
	}
	return s.remind(ctx, *learner, 0)
}

func (s *Scheduler) remind(ctx context.Context, learner models.Learner, limit int) (bool, error) {
	due, err := s.source.Due(ctx, learner.ID, limit)
	if err != nil {
		return false, fmt.Errorf("failed to get due concepts for %s: %w", learner.ID, err)
	}
	if len(due) == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminder(ctx, learner, due); err != nil {
		return false, fmt.Errorf("failed to notify %s: %w", learner.ID, err)
	}
	return true, nil
}
