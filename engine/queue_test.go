package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOverflowNeverBlocksAndKeepsNewest(t *testing.T) {
	var dropped []int
	q := newQueue(2, func(v int) { dropped = append(dropped, v) })

	// N+1 puts into a capacity-N queue must return promptly.
	start := time.Now()
	q.put(1)
	q.put(2)
	q.put(3)
	require.Less(t, time.Since(start), 100*time.Millisecond, "put blocked on a full queue")

	// Exactly N items retrievable, oldest evicted, newest present.
	assert.Equal(t, 2, q.len())
	v, ok := q.tryGet()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = q.tryGet()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = q.tryGet()
	assert.False(t, ok)

	assert.Equal(t, []int{1}, dropped)
}

func TestQueueNewestAlwaysAccepted(t *testing.T) {
	q := newQueue[int](1, nil)
	for i := 0; i < 10; i++ {
		q.put(i)
	}
	v, ok := q.tryGet()
	require.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestQueueTryGetEmpty(t *testing.T) {
	q := newQueue[int](2, nil)
	_, ok := q.tryGet()
	assert.False(t, ok)
}

func TestQueueGetWaitTimesOut(t *testing.T) {
	q := newQueue[int](2, nil)
	start := time.Now()
	_, ok := q.getWait(50 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestQueueGetWaitReceives(t *testing.T) {
	q := newQueue[int](2, nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.put(7)
	}()
	v, ok := q.getWait(time.Second)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestQueueDrainReleasesEverything(t *testing.T) {
	var dropped []int
	q := newQueue(4, func(v int) { dropped = append(dropped, v) })
	q.put(1)
	q.put(2)
	q.drain()
	assert.Equal(t, 0, q.len())
	assert.Equal(t, []int{1, 2}, dropped)
}
