// Package booster wires the position tracker, relay-log reader, worker
// pool, and status publisher together into Replication Booster's
// lifecycle: start, pause while the applier is stopped, and graceful
// shutdown.
package booster

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/siddontang/loggers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/block/replication-booster/pkg/config"
	"github.com/block/replication-booster/pkg/dbconn"
	"github.com/block/replication-booster/pkg/hostcheck"
	"github.com/block/replication-booster/pkg/position"
	"github.com/block/replication-booster/pkg/queue"
	"github.com/block/replication-booster/pkg/reader"
	"github.com/block/replication-booster/pkg/stats"
	"github.com/block/replication-booster/pkg/status"
	"github.com/block/replication-booster/pkg/worker"
)

// Booster owns every long-lived goroutine and the state they share.
type Booster struct {
	cfg    *config.Resolved
	logger loggers.Advanced

	adminDB  *sql.DB
	workerDB *sql.DB

	shutdown atomic.Bool
	tracker  *position.Tracker
	reader   *reader.Reader
	queues   []*queue.Queue
	workers  []*worker.Worker
	counters stats.Counters

	startTime time.Time
}

// New validates host locality, opens the admin and worker connections,
// resolves the applier's data directory and position-file path, and
// assembles every component. It does not yet start any goroutines.
func New(ctx context.Context, cfg *config.Resolved, logger loggers.Advanced) (*Booster, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if cfg.SlaveHost != "" {
		local, err := hostcheck.IsLocal(cfg.SlaveHost)
		if err != nil {
			return nil, fmt.Errorf("booster: checking host locality: %w", err)
		}
		if !local {
			return nil, fmt.Errorf("booster: target hostname %q is not a local address; replication booster must run on the replica itself", cfg.SlaveHost)
		}
	}

	adminDB, err := dbconn.New(cfg.DSN(cfg.AdminUser, cfg.AdminPassword), dbconn.NewDBConfig())
	if err != nil {
		return nil, fmt.Errorf("booster: connecting admin user: %w", err)
	}

	workerDB, err := dbconn.New(cfg.DSN(cfg.SlaveUser, cfg.SlavePassword), dbconn.NewDBConfig())
	if err != nil {
		adminDB.Close()
		return nil, fmt.Errorf("booster: connecting slave user: %w", err)
	}

	dataDir, err := dbconn.DataDir(ctx, adminDB)
	if err != nil {
		adminDB.Close()
		workerDB.Close()
		return nil, fmt.Errorf("booster: reading data directory: %w", err)
	}
	serverVersion, err := dbconn.ServerVersion(ctx, adminDB)
	if err != nil {
		adminDB.Close()
		workerDB.Close()
		return nil, fmt.Errorf("booster: reading server version: %w", err)
	}
	positionFile, err := dbconn.RelayLogInfoFile(ctx, adminDB, dataDir, serverVersion)
	if err != nil {
		adminDB.Close()
		workerDB.Close()
		return nil, fmt.Errorf("booster: reading relay log info file path: %w", err)
	}

	b := &Booster{cfg: cfg, logger: logger, adminDB: adminDB, workerDB: workerDB}

	b.tracker = position.NewTracker(positionFile, dataDir, adminDB, logger, &b.shutdown)

	b.queues = make([]*queue.Queue, cfg.Threads)
	b.workers = make([]*worker.Worker, cfg.Threads)
	for i := 0; i < cfg.Threads; i++ {
		b.queues[i] = queue.New()
		b.workers[i] = worker.New(i, b.queues[i], workerDB, b.tracker, &b.counters, logger, &b.shutdown)
	}

	b.reader = reader.New(reader.Config{
		OffsetEvents:     cfg.OffsetEvents,
		SecondsPrefetch:  cfg.SecondsPrefetch,
		SleepAtReadLimit: cfg.SleepAtReadLimit,
	}, b.tracker, b.queues, &b.counters, logger, &b.shutdown)

	return b, nil
}

// RequestShutdown flips the shared shutdown flag observed by every loop.
// Safe to call from a signal handler.
func (b *Booster) RequestShutdown() {
	b.shutdown.Store(true)
}

// Run starts every goroutine and blocks until they have all exited, either
// because RequestShutdown was called or a component hit a fatal error.
func (b *Booster) Run(ctx context.Context) error {
	b.startTime = time.Now()
	b.logger.Infof("Replication Booster started: threads=%d offset-events=%d seconds-prefetch=%d",
		b.cfg.Threads, b.cfg.OffsetEvents, b.cfg.SecondsPrefetch)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.tracker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		b.reader.Run(gctx)
		return nil
	})
	for _, w := range b.workers {
		w := w
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}
	if b.cfg.StatusUpdateFreq > 0 {
		g.Go(func() error {
			b.runStatusPublisher(gctx)
			return nil
		})
	}

	// Workers block in wait_and_pop() and only unwind once they observe a
	// shutdown sentinel on their own queue, so something has to push those
	// sentinels once shutdown is requested; nothing else in the group does.
	g.Go(func() error {
		for !b.shutdown.Load() && gctx.Err() == nil {
			time.Sleep(10 * time.Millisecond)
		}
		b.pushShutdownSentinels()
		return nil
	})

	err := g.Wait()
	b.logger.Infof("Replication Booster stopped after %s", time.Since(b.startTime).Round(time.Millisecond))
	telemetry := b.reader.Snapshot()
	final := status.Snapshot{
		ApplierTimestamp:  telemetry.ApplierTimestamp,
		PrefetchTimestamp: telemetry.PrefetchTimestamp,
		PrefetchPosition:  telemetry.PrefetchPosition,
		SQLThreadRunning:  b.tracker.Running(),
		ShutdownRequested: b.shutdown.Load(),
		Stats:             b.counters.Snapshot(),
	}
	status.PositionSnapshot(&final, b.tracker.Snapshot())
	fmt.Print(status.Render(final))
	return err
}

func (b *Booster) pushShutdownSentinels() {
	for _, q := range b.queues {
		q.Push(queue.Item{ShutdownSentinel: true})
	}
}

// Close releases the database connections. Call after Run returns.
func (b *Booster) Close() error {
	adminErr := b.adminDB.Close()
	workerErr := b.workerDB.Close()
	if adminErr != nil {
		return adminErr
	}
	return workerErr
}

func (b *Booster) runStatusPublisher(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.StatusUpdateFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.shutdown.Load() {
				return
			}
			b.publishOnce()
		}
	}
}

func (b *Booster) publishOnce() {
	pos := b.tracker.Snapshot()
	telemetry := b.reader.Snapshot()
	snap := status.Snapshot{
		ApplierTimestamp:  telemetry.ApplierTimestamp,
		PrefetchTimestamp: telemetry.PrefetchTimestamp,
		PrefetchPosition:  telemetry.PrefetchPosition,
		SQLThreadRunning:  b.tracker.Running(),
		ShutdownRequested: b.shutdown.Load(),
		Stats:             b.counters.Snapshot(),
	}
	status.PositionSnapshot(&snap, pos)
	body := status.Render(snap)
	if err := status.Publish(b.cfg.StatusFile, body); err != nil {
		b.logger.Errorf("status: failed to publish status file: %v", err)
	}
}
