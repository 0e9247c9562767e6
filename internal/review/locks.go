package review

import (
	"sync"

	"github.com/google/uuid"
)

// learnerLocks serializes work per learner while letting different learners
// proceed in parallel. Entries are dropped once nobody holds or waits on them.
type learnerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*learnerLock
}

type learnerLock struct {
	mu   sync.Mutex
	refs int
}

func newLearnerLocks() *learnerLocks {
	return &learnerLocks{locks: make(map[uuid.UUID]*learnerLock)}
}

// lock blocks until the learner is free and returns the matching unlock.
func (l *learnerLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &learnerLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
