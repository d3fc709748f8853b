package orchestrator

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLocks(t *testing.T) {
	locks := newTaskLocks()
	id := uuid.New()

	unlock := locks.Lock(id)

	_, ok := locks.TryLock(id)
	assert.False(t, ok)

	other, ok := locks.TryLock(uuid.New())
	require.True(t, ok)
	other()

	unlock()
	assert.Equal(t, 0, locks.len())

	again, ok := locks.TryLock(id)
	require.True(t, ok)
	again()
}

func TestTaskLocks_Exclusive(t *testing.T) {
	locks := newTaskLocks()
	id := uuid.New()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(id)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.len())
}
