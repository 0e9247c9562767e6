package review

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func (l *learnerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestLearnerLocksSerializeSameLearner(t *testing.T) {
	locks := newLearnerLocks()
	id := uuid.New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(id)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locks.size())
}

func TestLearnerLocksIndependentLearners(t *testing.T) {
	locks := newLearnerLocks()

	unlockA := locks.lock(uuid.New())
	done := make(chan struct{})
	go func() {
		unlock := locks.lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another learner blocked")
	}
	assert.Equal(t, 1, locks.size())

	unlockA()
	assert.Zero(t, locks.size())
}
