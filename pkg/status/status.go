// Package status renders a consolidated snapshot of Replication Booster's
// state and publishes it to a text file with torn-write-free atomic
// replace semantics.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/block/replication-booster/pkg/position"
	"github.com/block/replication-booster/pkg/stats"
)

// Snapshot is everything a single status tick renders.
type Snapshot struct {
	RelayLogFile      string
	RelayLogPos       uint64
	ApplierTimestamp  uint32
	PrefetchTimestamp uint32
	PrefetchPosition  uint64
	SQLThreadRunning  bool
	ShutdownRequested bool
	Stats             stats.Snapshot
}

// Render produces the fixed-format text body written to the status file,
// matching the original tool's "Status:"/"Statistics:" sections and field
// labels.
func Render(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status:\n")
	fmt.Fprintf(&b, "  Relay log file: %s\n", s.RelayLogFile)
	fmt.Fprintf(&b, "  Relay log (SQL thread) position: %d\n", s.RelayLogPos)
	fmt.Fprintf(&b, "  SQL thread timestamp: %d\n", s.ApplierTimestamp)
	fmt.Fprintf(&b, "  Prefetch event timestamp: %d\n", s.PrefetchTimestamp)
	fmt.Fprintf(&b, "  Prefetch event position: %d\n", s.PrefetchPosition)
	fmt.Fprintf(&b, "  Is SQL thread running: %s\n", boolToStr(s.SQLThreadRunning))
	fmt.Fprintf(&b, "  Shutdown program: %s\n", boolToStr(s.ShutdownRequested))
	fmt.Fprintf(&b, "Statistics:\n")
	fmt.Fprintf(&b, " Parsed binlog events: %d\n", s.Stats.ParsedEvents)
	fmt.Fprintf(&b, " Skipped binlog events by offset: %d\n", s.Stats.SkippedByOffset)
	fmt.Fprintf(&b, " Unrelated binlog events: %d\n", s.Stats.UnrelatedEvents)
	fmt.Fprintf(&b, " Queries discarded in front: %d\n", s.Stats.DiscardedInFront)
	fmt.Fprintf(&b, " Queries pushed to workers: %d\n", s.Stats.Pushed)
	fmt.Fprintf(&b, " Queries popped by workers: %d\n", s.Stats.Popped)
	fmt.Fprintf(&b, " Old queries popped by workers: %d\n", s.Stats.OldDiscarded)
	fmt.Fprintf(&b, " Queries converted to select: %d\n", s.Stats.Converted)
	fmt.Fprintf(&b, " Executed SELECT queries: %d\n", s.Stats.Executed)
	fmt.Fprintf(&b, " Error SELECT queries: %d\n", s.Stats.Errored)
	fmt.Fprintf(&b, " Number of times to read relay log limit: %d\n", s.Stats.ReachedAhead)
	fmt.Fprintf(&b, " Number of times to reach end of relay log: %d\n", s.Stats.ReachedEOF)
	return b.String()
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Publish writes body to a freshly created unique temporary file in the
// same directory as targetPath, then atomically renames it over
// targetPath. Readers of targetPath therefore always see either the
// previous complete snapshot or the new one, never a torn write.
func Publish(targetPath, body string) error {
	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, "replication_booster.*")
	if err != nil {
		return fmt.Errorf("status: creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("status: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("status: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, targetPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("status: renaming %s to %s: %w", tmpName, targetPath, err)
	}
	return nil
}

// PositionSnapshot folds a position.Position into the RelayLogFile/Pos
// fields of a Snapshot.
func PositionSnapshot(s *Snapshot, p position.Position) {
	s.RelayLogFile = p.RelayFile
	s.RelayLogPos = p.ByteOffset
}
