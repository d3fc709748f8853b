package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// taskLocks is a keyed mutex serializing every writer of one task inside
// this process. Entries are dropped when the last holder or waiter leaves.
type taskLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*taskLock
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: make(map[uuid.UUID]*taskLock)}
}

func (l *taskLocks) acquire(id uuid.UUID) *taskLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[id]
	if !ok {
		entry = &taskLock{}
		l.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (l *taskLocks) release(id uuid.UUID, entry *taskLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
}

// Lock blocks until the task is free and returns the unlock func.
func (l *taskLocks) Lock(id uuid.UUID) func() {
	entry := l.acquire(id)
	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.release(id, entry)
	}
}

// TryLock takes the task lock only if nobody holds it.
func (l *taskLocks) TryLock(id uuid.UUID) (func(), bool) {
	entry := l.acquire(id)
	if !entry.mu.TryLock() {
		l.release(id, entry)
		return nil, false
	}
	return func() {
		entry.mu.Unlock()
		l.release(id, entry)
	}, true
}

func (l *taskLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
