// Package relaylog parses MySQL relay-log files directly off disk, the way
// Replication Booster's reader tails the applier's current relay log
// rather than connecting to a master over the replication protocol.
package relaylog

import (
	"errors"
	"fmt"

	"github.com/go-mysql-org/go-mysql/replication"
)

// Kind identifies the shape of an Event.
type Kind int

const (
	Other Kind = iota
	Query
	Rotate
)

// Event is the subset of a parsed binlog event that the reader and
// dispatcher need. CurrentPos/NextPos are the local relay-log file byte
// offsets bracketing the event; they are tracked independently of the
// event header's own position field because, in a relay log, that field
// records the event's position in the *master's* original binlog, not its
// local offset on the replica.
type Event struct {
	Kind       Kind
	Timestamp  uint32
	ServerID   uint32
	CurrentPos uint64
	NextPos    uint64

	Query string
	DB    string

	RotateNextFile string
	RotateNextPos  uint64
}

var errStopIteration = errors.New("relaylog: caller requested stop")

// Reader parses a single relay-log file from a starting offset, reporting
// events to a callback until the callback asks to stop or the file is
// exhausted.
type Reader struct {
	parser *replication.BinlogParser
}

func NewReader() *Reader {
	return &Reader{parser: replication.NewBinlogParser()}
}

// DetectServerID opens path, seeks past the 4-byte magic header, and
// returns the server_id of the first event. The reader calls it once at
// process start and records the id; rotate events are not followed, whatever
// their server id.
func (r *Reader) DetectServerID(path string) (uint32, error) {
	var serverID uint32
	found := false
	err := r.parser.ParseFile(path, 4, func(e *replication.BinlogEvent) error {
		serverID = e.Header.ServerID
		found = true
		return errStopIteration
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("relaylog: %s has no events to detect a server id from", path)
	}
	return serverID, nil
}

// ReadFrom parses path starting at startPos, invoking onEvent for each
// event with a running local byte offset. onEvent returns cont=false to
// stop iteration early (e.g. the read-ahead gate was reached); this is
// reported back as (eof=false, err=nil). Reaching the physical end of the
// file without onEvent stopping iteration is reported as (eof=true,
// err=nil).
func (r *Reader) ReadFrom(path string, startPos uint64, onEvent func(Event) (cont bool)) (eof bool, err error) {
	pos := startPos
	stopped := false
	// For an offset past the magic header, ParseFile first hands over the
	// format description event at offset 4; it is not part of the range
	// being read and is not reported.
	skipFormatDescription := startPos > 4

	parseErr := r.parser.ParseFile(path, int64(startPos), func(be *replication.BinlogEvent) error {
		if skipFormatDescription {
			skipFormatDescription = false
			if be.Header.EventType == replication.FORMAT_DESCRIPTION_EVENT {
				return nil
			}
		}
		ev := Event{
			Timestamp:  be.Header.Timestamp,
			ServerID:   be.Header.ServerID,
			CurrentPos: pos,
			NextPos:    pos + uint64(be.Header.EventSize),
		}
		pos = ev.NextPos

		switch body := be.Event.(type) {
		case *replication.QueryEvent:
			ev.Kind = Query
			ev.Query = string(body.Query)
			ev.DB = string(body.Schema)
		case *replication.RotateEvent:
			ev.Kind = Rotate
			ev.RotateNextFile = string(body.NextLogName)
			ev.RotateNextPos = body.Position
		default:
			ev.Kind = Other
		}

		if !onEvent(ev) {
			stopped = true
			return errStopIteration
		}
		return nil
	})

	if parseErr != nil && !errors.Is(parseErr, errStopIteration) {
		return false, parseErr
	}
	return !stopped, nil
}
