// Package worker runs the per-queue loop that pops queued statements,
// rewrites them to read-only SELECTs, and executes them to warm the
// buffer pool ahead of the applier.
package worker

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/siddontang/loggers"

	"github.com/block/replication-booster/pkg/position"
	"github.com/block/replication-booster/pkg/queue"
	"github.com/block/replication-booster/pkg/rewrite"
	"github.com/block/replication-booster/pkg/stats"
)

// Worker owns one queue, one long-lived connection, and a local current-db
// cache.
type Worker struct {
	id       int
	queue    *queue.Queue
	db       *sql.DB
	tracker  *position.Tracker
	counters *stats.Counters
	logger   loggers.Advanced
	shutdown *atomic.Bool

	currentDB string
	local     stats.Local
}

func New(id int, q *queue.Queue, db *sql.DB, tracker *position.Tracker, counters *stats.Counters, logger loggers.Advanced, shutdown *atomic.Bool) *Worker {
	return &Worker{
		id:       id,
		queue:    q,
		db:       db,
		tracker:  tracker,
		counters: counters,
		logger:   logger,
		shutdown: shutdown,
	}
}

// Run drains w.queue until it observes a shutdown sentinel or the global
// shutdown flag, merging its local stats into the shared counters on every
// iteration of the loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		w.local.Merge(w.counters)

		item := w.queue.WaitAndPop()
		if item.ShutdownSentinel {
			return
		}
		w.local.Popped++

		if item.SourcePos <= w.tracker.Snapshot().ByteOffset {
			w.local.OldDiscarded++
			continue
		}

		result := rewrite.Rewrite(item.Query)
		if result.Kind == rewrite.Skip {
			continue
		}
		w.local.Converted++

		if item.DB != "" && item.DB != w.currentDB {
			if _, err := w.db.ExecContext(ctx, "USE `"+item.DB+"`"); err != nil {
				w.logger.Errorf("worker %d: failed to switch database to %s, exiting: %v", w.id, item.DB, err)
				return
			}
			w.currentDB = item.DB
		}

		if err := w.execute(ctx, result.SQL); err != nil {
			w.local.Errored++
			w.logger.Errorf("worker %d: select failed: %v", w.id, err)
		} else {
			w.local.Executed++
		}

		if w.shutdown.Load() {
			return
		}
	}
}

// execute runs the rewritten SELECT and fully drains its result set; the
// rows themselves are never inspected, only read off the wire so the
// buffer pool touch has actually happened.
func (w *Worker) execute(ctx context.Context, sqlText string) error {
	rows, err := w.db.QueryContext(ctx, sqlText)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	dest := make([]any, len(cols))
	raw := make([]sql.RawBytes, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
	}
	return rows.Err()
}
