package deadline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewKeeper_NilQueuePanics(t *testing.T) {
	require.Panics(t, func() { NewKeeper(nil, nil) })
}

func TestKeeper_TimesOutDueEntries(t *testing.T) {
	q := NewQueue()
	k := NewKeeper(q, nil)

	var mu sync.Mutex
	var expired []Entry
	k.OnTimeout = func(e Entry) {
		mu.Lock()
		expired = append(expired, e)
		mu.Unlock()
	}
	k.Start()
	defer k.Stop()
	require.True(t, k.Running())

	a := entryIn("a", 10*time.Millisecond)
	b := entryIn("b", 20*time.Millisecond)
	far := entryIn("far", time.Hour)
	q.Push(b)
	q.Push(far)
	q.Push(a)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(expired) == 2
	}, time.Second, 5*time.Millisecond)
	require.True(t, a.isTimedOut())
	require.True(t, b.isTimedOut())
	require.False(t, far.isTimedOut())
	require.True(t, q.Contains(far))

	mu.Lock()
	require.Equal(t, []Entry{a, b}, expired)
	mu.Unlock()
}

func TestKeeper_StopDrainsAndTimesOutRemaining(t *testing.T) {
	q := NewQueue()
	k := NewKeeper(q, nil)
	k.Start()

	far := entryIn("far", time.Hour)
	never := &fakeEntry{name: "never"}
	q.Push(far)
	q.Push(never)

	k.Stop()

	select {
	case <-k.Done():
	default:
		t.Fatal("Stop returned before the keeper finished")
	}
	require.False(t, k.Running())
	require.True(t, far.isTimedOut())
	require.True(t, never.isTimedOut())
	require.Equal(t, 0, q.Len())
	require.False(t, q.Push(entryIn("after", time.Second)))

	// second stop is harmless
	k.Stop()
}

func TestKeeper_StopWithoutStart(t *testing.T) {
	q := NewQueue()
	k := NewKeeper(q, nil)
	e := entryIn("e", time.Hour)
	q.Push(e)

	k.Stop()
	require.True(t, e.isTimedOut())
	require.False(t, k.Running())
}

func TestKeeper_ExpireIgnoresEntriesThatRefuse(t *testing.T) {
	q := NewQueue()
	k := NewKeeper(q, nil)
	calls := 0
	k.OnTimeout = func(Entry) { calls++ }

	e := entryIn("e", 0)
	e.TimeOut() // already timed out, second TimeOut reports false
	k.expire(e)
	require.Equal(t, 0, calls)
}
