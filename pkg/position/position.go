// Package position tracks the SQL applier's current relay-log file and
// byte offset by polling its position file, and its liveness by polling
// SHOW SLAVE STATUS.
package position

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siddontang/loggers"

	"github.com/block/replication-booster/pkg/dbconn"
)

// Position is the applier's last-known relay-log coordinates.
type Position struct {
	RelayFile  string
	ByteOffset uint64
}

// Tracker polls the position file every tick and SHOW SLAVE STATUS every
// adminPollEvery ticks, publishing the results behind a mutex.
type Tracker struct {
	positionFilePath string
	dataDir          string
	db               *sql.DB
	logger           loggers.Advanced
	tickInterval     time.Duration
	adminPollEvery   uint64

	mu       sync.Mutex
	pos      Position
	running  atomic.Bool
	shutdown *atomic.Bool
}

const (
	defaultTickInterval = 10 * time.Millisecond
	defaultAdminPoll    = 200
)

func NewTracker(positionFilePath, dataDir string, db *sql.DB, logger loggers.Advanced, shutdown *atomic.Bool) *Tracker {
	t := &Tracker{
		positionFilePath: positionFilePath,
		dataDir:          dataDir,
		db:               db,
		logger:           logger,
		tickInterval:     defaultTickInterval,
		adminPollEvery:   defaultAdminPoll,
		shutdown:         shutdown,
	}
	t.running.Store(true)
	return t
}

// Snapshot returns the most recently observed Position.
func (t *Tracker) Snapshot() Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// Running reports the most recently observed Slave_SQL_Running state.
func (t *Tracker) Running() bool {
	return t.running.Load()
}

// Run polls until the shutdown flag is observed. It is meant to run in its
// own goroutine for the life of the process.
func (t *Tracker) Run(ctx context.Context) {
	var ticks uint64
	for {
		if err := t.refreshPosition(); err != nil {
			t.logger.Errorf("position: failed to read position file %s: %v", t.positionFilePath, err)
		}
		if t.shutdown.Load() {
			return
		}
		time.Sleep(t.tickInterval)
		ticks++
		if ticks%t.adminPollEvery == 0 {
			if err := t.refreshAdminStatus(ctx); err != nil {
				t.logger.Errorf("position: admin status query failed, requesting shutdown: %v", err)
				t.shutdown.Store(true)
				return
			}
		}
	}
}

// refreshPosition re-reads the position file and updates pos under mu. The
// file's first matching line begins with "." (a relative relay-log path,
// e.g. "./relay-bin.000123") or "/" (an absolute path); the following line
// is the numeric byte offset.
func (t *Tracker) refreshPosition() error {
	f, err := os.Open(t.positionFilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var relayFile string
		switch line[0] {
		case '.':
			relayFile = t.dataDir + "/" + strings.TrimPrefix(line, "./")
		case '/':
			relayFile = line
		default:
			continue
		}
		if !scanner.Scan() {
			return fmt.Errorf("position: position file ended before an offset line")
		}
		offset, err := strconv.ParseUint(strings.TrimSpace(scanner.Text()), 10, 64)
		if err != nil {
			return fmt.Errorf("position: parsing offset: %w", err)
		}
		t.mu.Lock()
		t.pos = Position{RelayFile: relayFile, ByteOffset: offset}
		t.mu.Unlock()
		return nil
	}
	return scanner.Err()
}

func (t *Tracker) refreshAdminStatus(ctx context.Context) error {
	status, err := dbconn.ShowSlaveStatus(ctx, t.db)
	if err != nil {
		return err
	}
	prev := t.running.Swap(status.SQLThreadRunning)
	if prev != status.SQLThreadRunning {
		t.logger.Infof("position: SQL thread running transitioned from %v to %v", prev, status.SQLThreadRunning)
	}
	return nil
}
