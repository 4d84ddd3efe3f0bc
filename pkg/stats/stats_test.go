package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeAccumulatesAndResets(t *testing.T) {
	var c Counters
	l := Local{Popped: 3, OldDiscarded: 1, Converted: 2, Executed: 2, Errored: 1}

	l.Merge(&c)

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap.Popped)
	assert.Equal(t, uint64(1), snap.OldDiscarded)
	assert.Equal(t, uint64(2), snap.Converted)
	assert.Equal(t, uint64(2), snap.Executed)
	assert.Equal(t, uint64(1), snap.Errored)
	assert.Equal(t, Local{}, l)

	l.Popped = 5
	l.Merge(&c)
	assert.Equal(t, uint64(8), c.Snapshot().Popped)
}

func TestCountersIndependentFields(t *testing.T) {
	var c Counters
	c.ParsedEvents.Add(10)
	c.ReachedEOF.Add(1)

	snap := c.Snapshot()
	assert.Equal(t, uint64(10), snap.ParsedEvents)
	assert.Equal(t, uint64(1), snap.ReachedEOF)
	assert.Equal(t, uint64(0), snap.Converted)
}
