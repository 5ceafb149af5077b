package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesSessionOnFirstUse(t *testing.T) {
	store, err := NewStore(10)
	require.NoError(t, err)

	state, release := store.Acquire("s1")
	assert.Equal(t, "s1", state.ID)
	assert.Empty(t, state.Turns)
	release()

	again, release := store.Acquire("s1")
	assert.Same(t, state, again)
	release()
}

func TestAcquireSerializesSameSession(t *testing.T) {
	store, err := NewStore(10)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, release := store.Acquire("shared")
			defer release()
			// Critical section: read-then-write must not interleave.
			n := len(state.Turns)
			state.Turns = append(state.Turns, TurnRecord{TurnNumber: n + 1})
		}()
	}
	wg.Wait()

	state, release := store.Acquire("shared")
	defer release()
	require.Len(t, state.Turns, workers)
	for i, turn := range state.Turns {
		assert.Equal(t, i+1, turn.TurnNumber)
	}
}

func TestStoreEvictsLeastRecentlyUsedSession(t *testing.T) {
	store, err := NewStore(2)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		_, release := store.Acquire(id)
		release()
	}

	assert.Equal(t, 2, store.Len())
	assert.Nil(t, store.Peek("a"))
}

func TestPeekReturnsHistoryCopy(t *testing.T) {
	store, err := NewStore(10)
	require.NoError(t, err)

	state, release := store.Acquire("s1")
	state.Turns = append(state.Turns, TurnRecord{TurnNumber: 1, Question: "q"})
	release()

	history := store.Peek("s1")
	require.Len(t, history, 1)
	history[0].Question = "mutated"

	fresh := store.Peek("s1")
	assert.Equal(t, "q", fresh[0].Question)
}

func TestDifferentSessionsAreIndependent(t *testing.T) {
	store, err := NewStore(100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("s%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, release := store.Acquire(id)
			defer release()
			state.Turns = append(state.Turns, TurnRecord{TurnNumber: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
}

func TestNewStoreRejectsNonPositiveBound(t *testing.T) {
	_, err := NewStore(0)
	assert.Error(t, err)
}
