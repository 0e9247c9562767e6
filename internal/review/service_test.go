package review

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scibot/internal/database"
	"github.com/example/scibot/internal/spaced_repetition"
	"github.com/example/scibot/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	db      *database.DB
	svc     *Service
	clock   *testClock
	learner *models.Learner
}

func newEnv(t *testing.T) env {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: t0}
	svc := NewService(db, WithClock(clock.Now), WithLogger(log.New(io.Discard)))

	learner, err := svc.EnsureLearner(context.Background(), 1001, "ada")
	require.NoError(t, err)
	return env{db: db, svc: svc, clock: clock, learner: learner}
}

func (e env) enroll(t *testing.T, name string) *models.Concept {
	t.Helper()
	c, started, err := e.svc.Enroll(context.Background(), e.learner.ID, name, "")
	require.NoError(t, err)
	require.True(t, started)
	return c
}

func TestEnsureLearnerIsIdempotent(t *testing.T) {
	e := newEnv(t)

	again, err := e.svc.EnsureLearner(context.Background(), 1001, "ada")
	require.NoError(t, err)
	assert.Equal(t, e.learner.ID, again.ID)
	assert.Equal(t, models.DefaultDecayCoefficient, again.State().DecayCoefficient)
}

func TestEnrollStartsAtDefaultRetention(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.enroll(t, "entropy")

	subject, err := database.NewKnowledgeRepository(e.db).Get(ctx, e.learner.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRetention, subject.Retention)
	assert.Nil(t, subject.LastReviewed)
	assert.True(t, subject.NextReview.Equal(t0))

	_, started, err := e.svc.Enroll(ctx, e.learner.ID, "entropy", "")
	require.NoError(t, err)
	assert.False(t, started)

	_, _, err = e.svc.Enroll(ctx, uuid.New(), "entropy", "")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestReviewPassPersistsEverything(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.enroll(t, "entropy")

	res, err := e.svc.Review(ctx, e.learner.ID, c.ID, 1.0)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, res.Subject.Retention, 1e-12)
	assert.InDelta(t, 0.45, res.Learner.DecayCoefficient, 1e-12)
	assert.Equal(t, 2, res.Log.IntervalDays)
	assert.True(t, res.Subject.NextReview.Equal(t0.AddDate(0, 0, 2)))
	assert.NotZero(t, res.Log.ID)

	stored, err := database.NewKnowledgeRepository(e.db).Get(ctx, e.learner.ID, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, stored.Retention, 1e-12)
	require.NotNil(t, stored.LastReviewed)
	assert.True(t, stored.LastReviewed.Equal(t0))

	learner, err := e.svc.Learner(ctx, e.learner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, learner.State().DecayCoefficient, 1e-12)

	logs, err := e.svc.Logs(ctx, e.learner.ID, t0.Add(-time.Hour), t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1.0, logs[0].Quality)
	assert.InDelta(t, 0.5, logs[0].OldLambda, 1e-12)
	assert.InDelta(t, 0.45, logs[0].NewLambda, 1e-12)
	assert.InDelta(t, 0.5, logs[0].RetentionBefore, 1e-12)
	assert.InDelta(t, 0.75, logs[0].RetentionAfter, 1e-12)
}

func TestReviewInitializesUntrackedConcept(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, _, err := database.NewConceptRepository(e.db).GetOrCreate(ctx, "osmosis", "")
	require.NoError(t, err)

	res, err := e.svc.Review(ctx, e.learner.ID, c.ID, 0.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Subject.Retention, 1e-12)
	assert.InDelta(t, 0.55, res.Learner.DecayCoefficient, 1e-12)
	assert.Equal(t, 7, res.Log.IntervalDays)
}

func TestReviewErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.enroll(t, "entropy")

	t.Run("unknown concept", func(t *testing.T) {
		_, err := e.svc.Review(ctx, e.learner.ID, 9999, 1.0)
		assert.ErrorIs(t, err, ErrUnknownConcept)
	})

	t.Run("unknown learner", func(t *testing.T) {
		_, err := e.svc.Review(ctx, uuid.New(), c.ID, 1.0)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("corrupt stored retention rolls back", func(t *testing.T) {
		bad := models.NewReviewSubject(e.learner.ID, c.ID, t0)
		bad.Retention = 0.05
		require.NoError(t, database.NewKnowledgeRepository(e.db).Upsert(ctx, bad))

		_, err := e.svc.Review(ctx, e.learner.ID, c.ID, 1.0)
		require.ErrorIs(t, err, spaced_repetition.ErrInvalidInput)

		var invalid *spaced_repetition.InvalidInputError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "retention", invalid.Field)

		logs, err := e.svc.Logs(ctx, e.learner.ID, t0.AddDate(-1, 0, 0), t0.AddDate(1, 0, 0))
		require.NoError(t, err)
		assert.Empty(t, logs)

		learner, err := e.svc.Learner(ctx, e.learner.ID)
		require.NoError(t, err)
		assert.False(t, learner.LambdaCoef.Valid)
	})
}

func TestReviewSequenceAcrossDays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.enroll(t, "entropy")

	for _, q := range []float64{1, 1, 0, 0.6, 0.59} {
		res, err := e.svc.Review(ctx, e.learner.ID, c.ID, q)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Subject.Retention, spaced_repetition.MinRetention)
		assert.LessOrEqual(t, res.Subject.Retention, spaced_repetition.MaxRetention)
		assert.False(t, res.Subject.NextReview.Before(*res.Subject.LastReviewed))
		e.clock.Advance(24 * time.Hour)
	}

	logs, err := e.svc.Logs(ctx, e.learner.ID, t0, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, logs, 5)
	for i := 1; i < len(logs); i++ {
		assert.InDelta(t, logs[i-1].RetentionAfter, logs[i].RetentionBefore, 1e-12)
		assert.InDelta(t, logs[i-1].NewLambda, logs[i].OldLambda, 1e-12)
	}
}

func TestConcurrentReviewsForOneLearnerAreSerialized(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const n = 5
	concepts := make([]*models.Concept, n)
	for i := range concepts {
		concepts[i] = e.enroll(t, fmt.Sprintf("concept-%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, c := range concepts {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := e.svc.Review(ctx, e.learner.ID, id, 1.0)
			errs <- err
		}(c.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	want := models.DefaultDecayCoefficient
	for i := 0; i < n; i++ {
		want *= 0.9
	}
	learner, err := e.svc.Learner(ctx, e.learner.ID)
	require.NoError(t, err)
	assert.InDelta(t, want, learner.State().DecayCoefficient, 1e-9)
}

func TestDueRanksAndLimits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	strong := e.enroll(t, "strong")
	weak := e.enroll(t, "weak")
	fresh := e.enroll(t, "fresh")

	_, err := e.svc.Review(ctx, e.learner.ID, strong.ID, 1.0)
	require.NoError(t, err)
	_, err = e.svc.Review(ctx, e.learner.ID, weak.ID, 0.0)
	require.NoError(t, err)

	due, err := e.svc.Due(ctx, e.learner.ID, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, fresh.ID, due[0].ConceptID)

	e.clock.Advance(30 * 24 * time.Hour)
	due, err = e.svc.Due(ctx, e.learner.ID, 0)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, []int64{fresh.ID, weak.ID, strong.ID}, []int64{due[0].ConceptID, due[1].ConceptID, due[2].ConceptID})
	assert.Equal(t, "fresh", due[0].ConceptName)

	due, err = e.svc.Due(ctx, e.learner.ID, 2)
	require.NoError(t, err)
	assert.Len(t, due, 2)

	_, err = e.svc.Due(ctx, uuid.New(), 5)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.enroll(t, "a")
	b := e.enroll(t, "b")
	e.enroll(t, "c")

	// a: 0.5 -> 0.75 -> 0.8625
	for i := 0; i < 2; i++ {
		_, err := e.svc.Review(ctx, e.learner.ID, a.ID, 1.0)
		require.NoError(t, err)
		e.clock.Advance(time.Hour)
	}
	// b: 0.5 -> 0.25
	_, err := e.svc.Review(ctx, e.learner.ID, b.ID, 0.0)
	require.NoError(t, err)

	stats, err := e.svc.Stats(ctx, e.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalConcepts)
	assert.Equal(t, 1, stats.DueConcepts)
	assert.Equal(t, 1, stats.StrongConcepts)
	assert.Equal(t, 1, stats.WeakConcepts)
	assert.Equal(t, 3, stats.ReviewsLastWeek)
	assert.InDelta(t, (0.8625+0.25+0.5)/3, stats.AverageRetention, 1e-9)
	assert.InDelta(t, 0.5*0.9*0.9*1.1, stats.DecayCoefficient, 1e-9)

	e.clock.Advance(8 * 24 * time.Hour)
	stats, err = e.svc.Stats(ctx, e.learner.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.ReviewsLastWeek)
	assert.Equal(t, 3, stats.DueConcepts)
}

func TestUpdateNotifications(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.svc.UpdateNotifications(ctx, e.learner.ID, true, 24, 10), ErrInvalidSettings)
	assert.ErrorIs(t, e.svc.UpdateNotifications(ctx, e.learner.ID, true, 8, 0), ErrInvalidSettings)

	require.NoError(t, e.svc.UpdateNotifications(ctx, e.learner.ID, false, 20, 3))
	learner, err := e.svc.Learner(ctx, e.learner.ID)
	require.NoError(t, err)
	assert.False(t, learner.NotificationEnabled)
	assert.Equal(t, 20, learner.NotificationHour)
	assert.Equal(t, 3, learner.ReviewsPerDay)
}
