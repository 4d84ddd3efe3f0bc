package queue

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func TestPushPopOrdering(t *testing.T) {
	q := New()
	q.Push(Item{Query: "a"})
	q.Push(Item{Query: "b"})
	q.Push(Item{Query: "c"})

	assert.Equal(t, "a", q.WaitAndPop().Query)
	assert.Equal(t, "b", q.WaitAndPop().Query)
	assert.Equal(t, "c", q.WaitAndPop().Query)
}

func TestWaitAndPopBlocksUntilPush(t *testing.T) {
	q := New()
	done := make(chan Item, 1)
	go func() {
		done <- q.WaitAndPop()
	}()

	select {
	case <-done:
		t.Fatal("WaitAndPop returned before any item was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(Item{Query: "late"})

	select {
	case item := <-done:
		assert.Equal(t, "late", item.Query)
	case <-time.After(time.Second):
		t.Fatal("WaitAndPop never woke after push")
	}
}

func TestClearDiscardsQueuedItems(t *testing.T) {
	q := New()
	q.Push(Item{Query: "a"})
	q.Push(Item{Query: "b"})
	require.Equal(t, 2, q.Size())

	n := q.Clear()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, q.Size())
}

func TestShutdownSentinelObserved(t *testing.T) {
	q := New()
	q.Push(Item{Query: "a"})
	q.Push(Item{ShutdownSentinel: true})

	assert.False(t, q.WaitAndPop().ShutdownSentinel)
	assert.True(t, q.WaitAndPop().ShutdownSentinel)
}

func TestConcurrentPushPop(t *testing.T) {
	q := New()
	const n = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(Item{SourcePos: uint64(i)})
		}
	}()

	seen := 0
	for seen < n {
		q.WaitAndPop()
		seen++
	}
	wg.Wait()
	assert.Equal(t, n, seen)
}
