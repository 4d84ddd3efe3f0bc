// Package config defines Replication Booster's command-line options, their
// defaults, and the clamping/validation applied before a run starts.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Options holds every user-configurable knob, parsed from the command line
// via kong tags on the embedding CLI struct.
type Options struct {
	Threads          int    `help:"Number of worker threads, each converting binlog events and executing SELECT statements." short:"t" default:"10"`
	OffsetEvents     int    `help:"Number of binlog events the relay-log reader skips initially on every (re)open." short:"o" default:"500"`
	SecondsPrefetch  int    `help:"Stop reading ahead once an event's timestamp is this many seconds ahead of the SQL thread's." short:"s" default:"3"`
	MillisSleep      int    `help:"Sleep this many milliseconds after hitting the read-ahead limit before reopening the relay log." short:"m" default:"10"`
	User             string `help:"Replica user with SELECT privilege on all application tables." short:"u" default:"root"`
	Password         string `help:"Replica password." short:"p"`
	AdminUser        string `help:"Administration user with SUPER and REPLICATION CLIENT privileges, for SHOW SLAVE STATUS. Falls back to --user when unset." short:"a"`
	AdminPassword    string `help:"Administration user's password. Falls back to --password when unset." short:"b"`
	Host             string `help:"Replica hostname or IP address. Must resolve to a local address." short:"h" default:"localhost"`
	Port             int    `help:"Replica port number." short:"P" default:"3306"`
	Socket           string `help:"Replica socket file path. When set, overrides --host." short:"S"`
	StatusFile       string `help:"Path to the status file, rewritten atomically on every tick." short:"f" default:"/var/spool/replication_booster.log"`
	StatusUpdateFreq int    `help:"Seconds between status-file updates; 0 disables the publisher." short:"F" default:"30"`
}

// Resolved is the validated, defaulted, and clamped form of Options ready
// for the booster to consume.
type Resolved struct {
	Threads          int
	OffsetEvents     int
	SecondsPrefetch  int
	SleepAtReadLimit time.Duration
	SlaveUser        string
	SlavePassword    string
	AdminUser        string
	AdminPassword    string
	SlaveHost        string
	SlavePort        int
	SlaveSocket      string
	StatusFile       string
	StatusUpdateFreq time.Duration
}

// Resolve applies the clamping rules and admin-credential fallback and
// returns the Resolved configuration, or an error if a required field was
// left empty.
func (o Options) Resolve() (*Resolved, error) {
	if o.Host == "" && o.Socket == "" {
		return nil, errors.New("config: one of --host or --socket must be set")
	}

	r := &Resolved{
		Threads:          clampMin(o.Threads, 1),
		OffsetEvents:     clampMin(o.OffsetEvents, 0),
		SecondsPrefetch:  clampMin(o.SecondsPrefetch, 1),
		SleepAtReadLimit: time.Duration(o.MillisSleep) * time.Millisecond,
		SlaveUser:        o.User,
		SlavePassword:    o.Password,
		AdminUser:        o.AdminUser,
		AdminPassword:    o.AdminPassword,
		SlaveHost:        o.Host,
		SlavePort:        o.Port,
		SlaveSocket:      o.Socket,
		StatusFile:       o.StatusFile,
		StatusUpdateFreq: time.Duration(clampMin(o.StatusUpdateFreq, 0)) * time.Second,
	}

	// A socket connection bypasses TCP host/port entirely.
	if r.SlaveSocket != "" {
		r.SlaveHost = ""
	}

	// The admin connection defaults to the replica's own credentials when
	// not given its own.
	if r.AdminUser == "" {
		r.AdminUser = r.SlaveUser
	}
	if r.AdminPassword == "" {
		r.AdminPassword = r.SlavePassword
	}

	return r, nil
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

// DSN builds a go-sql-driver/mysql DSN for a connection to the replica with
// the given credentials; the booster uses it for both the admin and the
// worker connections.
func (r *Resolved) DSN(user, password string) string {
	if r.SlaveSocket != "" {
		return fmt.Sprintf("%s:%s@unix(%s)/", user, password, r.SlaveSocket)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/", user, password, r.SlaveHost, r.SlavePort)
}
