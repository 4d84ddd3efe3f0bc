package reader

import (
	"os"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/block/replication-booster/pkg/position"
	"github.com/block/replication-booster/pkg/queue"
	"github.com/block/replication-booster/pkg/stats"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func TestQueueIndexRoundRobin(t *testing.T) {
	assert.Equal(t, 0, queueIndex(0, 4))
	assert.Equal(t, 1, queueIndex(1, 4))
	assert.Equal(t, 3, queueIndex(3, 4))
	assert.Equal(t, 0, queueIndex(4, 4))
	assert.Equal(t, 2, queueIndex(6, 4))
}

func TestNewReaderStartsWithUnknownServerID(t *testing.T) {
	var shutdown atomic.Bool
	var counters stats.Counters
	tracker := position.NewTracker("/no/such/file", "/var/lib/mysql", nil, logrus.StandardLogger(), &shutdown)
	qs := []*queue.Queue{queue.New(), queue.New()}

	r := New(Config{OffsetEvents: 500, SecondsPrefetch: 3}, tracker, qs, &counters, logrus.StandardLogger(), &shutdown)

	require.NotNil(t, r)
	assert.False(t, r.serverIDKnown)
}

func TestRunReturnsImmediatelyWhenShutdown(t *testing.T) {
	var shutdown atomic.Bool
	shutdown.Store(true)
	var counters stats.Counters
	tracker := position.NewTracker("/no/such/file", "/var/lib/mysql", nil, logrus.StandardLogger(), &shutdown)
	qs := []*queue.Queue{queue.New()}

	r := New(Config{OffsetEvents: 0, SecondsPrefetch: 1}, tracker, qs, &counters, logrus.StandardLogger(), &shutdown)
	r.Run(t.Context())
}
