// Package reader implements the relay-log reader: the main prefetch loop
// that tracks the applier's position, parses events, gates read-ahead by
// timestamp skew, and dispatches candidate statements to the worker pool.
package reader

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/siddontang/loggers"

	"github.com/block/replication-booster/pkg/position"
	"github.com/block/replication-booster/pkg/queue"
	"github.com/block/replication-booster/pkg/relaylog"
	"github.com/block/replication-booster/pkg/rewrite"
	"github.com/block/replication-booster/pkg/stats"
)

const openRetries = 10

// queueIndex implements the round-robin dispatch policy: pushed mod N.
func queueIndex(pushed uint64, n int) int {
	return int(pushed % uint64(n))
}

// Config holds the reader's tunables, already clamped by pkg/config.
type Config struct {
	OffsetEvents     int
	SecondsPrefetch  int
	SleepAtReadLimit time.Duration
}

// Reader is the relay-log reader's state across outer loop iterations.
type Reader struct {
	cfg      Config
	tracker  *position.Tracker
	relay    *relaylog.Reader
	queues   []*queue.Queue
	counters *stats.Counters
	logger   loggers.Advanced
	shutdown *atomic.Bool

	localServerID uint32
	serverIDKnown bool
	pushedCount   uint64

	applierTimestamp  atomic.Uint32
	prefetchTimestamp atomic.Uint32
	prefetchPosition  atomic.Uint64
}

// Telemetry is the subset of reader state the status publisher reports.
type Telemetry struct {
	ApplierTimestamp  uint32
	PrefetchTimestamp uint32
	PrefetchPosition  uint64
}

// Snapshot returns the reader's current telemetry for the status publisher.
func (r *Reader) Snapshot() Telemetry {
	return Telemetry{
		ApplierTimestamp:  r.applierTimestamp.Load(),
		PrefetchTimestamp: r.prefetchTimestamp.Load(),
		PrefetchPosition:  r.prefetchPosition.Load(),
	}
}

func New(cfg Config, tracker *position.Tracker, queues []*queue.Queue, counters *stats.Counters, logger loggers.Advanced, shutdown *atomic.Bool) *Reader {
	return &Reader{
		cfg:      cfg,
		tracker:  tracker,
		relay:    relaylog.NewReader(),
		queues:   queues,
		counters: counters,
		logger:   logger,
		shutdown: shutdown,
	}
}

// Run loops until the shutdown flag is observed. Each outer iteration
// binds to the applier's current relay-log file and reads forward until
// reaching ahead of the applier's wall-clock position, hitting end of
// file, or observing shutdown/applier-stopped.
func (r *Reader) Run(ctx context.Context) {
	for {
		if r.shutdown.Load() {
			return
		}

		pos := r.tracker.Snapshot()
		if pos.RelayFile == "" {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if !r.serverIDKnown {
			if id, err := r.detectServerIDWithRetry(pos.RelayFile); err != nil {
				r.logger.Errorf("reader: failed to detect local server id: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			} else {
				r.localServerID = id
				r.serverIDKnown = true
			}
		}

		r.readOneGeneration(pos)

		for _, q := range r.queues {
			q.Clear()
		}

		for !r.tracker.Running() {
			if r.shutdown.Load() {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func (r *Reader) detectServerIDWithRetry(path string) (uint32, error) {
	var lastErr error
	for i := 0; i < openRetries; i++ {
		id, err := r.relay.DetectServerID(path)
		if err == nil {
			return id, nil
		}
		lastErr = err
		time.Sleep(time.Millisecond)
	}
	return 0, lastErr
}

// readOneGeneration streams one relay-log file from startPos until the
// read-ahead gate, end of file, or shutdown is observed.
func (r *Reader) readOneGeneration(startPos position.Position) {
	var (
		applierTimestamp uint32
		startOfBatch     = true
		eventsHandled    int
	)

	eof, err := r.relay.ReadFrom(startPos.RelayFile, startPos.ByteOffset, func(ev relaylog.Event) bool {
		if r.shutdown.Load() || !r.tracker.Running() {
			return false
		}

		r.counters.ParsedEvents.Add(1)
		r.prefetchTimestamp.Store(ev.Timestamp)
		r.prefetchPosition.Store(ev.CurrentPos)

		if startOfBatch {
			applierTimestamp = ev.Timestamp
			r.applierTimestamp.Store(ev.Timestamp)
			startOfBatch = false
		}

		if ev.Timestamp >= applierTimestamp+uint32(r.cfg.SecondsPrefetch) {
			r.counters.ReachedAhead.Add(1)
			time.Sleep(r.cfg.SleepAtReadLimit)
			return false
		}

		eventsHandled++
		if eventsHandled <= r.cfg.OffsetEvents {
			r.counters.SkippedByOffset.Add(1)
			return true
		}

		switch ev.Kind {
		case relaylog.Query:
			if !rewrite.IsCandidate(ev.Query) {
				r.counters.DiscardedInFront.Add(1)
				return true
			}
			item := queue.Item{Query: ev.Query, DB: ev.DB, SourcePos: ev.CurrentPos}
			r.queues[queueIndex(r.pushedCount, len(r.queues))].Push(item)
			r.pushedCount++
			r.counters.Pushed.Add(1)
		case relaylog.Rotate:
			// The next file to open comes from re-snapshotting the
			// tracker's position on the next outer iteration, not from
			// this event directly.
		default:
			r.counters.UnrelatedEvents.Add(1)
		}
		return true
	})
	if err != nil {
		r.logger.Errorf("reader: error reading %s: %v", startPos.RelayFile, err)
		return
	}
	if eof {
		r.counters.ReachedEOF.Add(1)
		time.Sleep(100 * time.Microsecond)
	}
}
