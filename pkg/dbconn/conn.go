// Package dbconn contains the database-client plumbing shared by the
// applier-position tracker and the worker pool: DSN construction, session
// standardization, and MySQL error classification.
package dbconn

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errCannotConnect   = 2003
	errConnLost        = 2013
	errReadOnly        = 1290
	errQueryKilled     = 1836

	maxConnLifetime = time.Minute * 3
	maxIdleConns    = 2
)

// DBConfig tunes session behavior for every connection this package opens.
type DBConfig struct {
	LockWaitTimeout       int
	InnodbLockWaitTimeout int
	MaxOpenConnections    int
}

func NewDBConfig() *DBConfig {
	return &DBConfig{
		LockWaitTimeout:       30,
		InnodbLockWaitTimeout: 3,
		MaxOpenConnections:    4,
	}
}

// newDSN appends the session settings Replication Booster needs to an
// input DSN: a fixed time zone (so prefetch SELECTs can't be skewed by a
// connection picking up the server's local time zone), lock wait timeouts
// from config, and a utf8mb4 connection character set with the binary
// utf8mb4_bin collation.
func newDSN(inputDSN string, config *DBConfig) (string, error) {
	cfg, err := mysql.ParseDSN(inputDSN)
	if err != nil {
		return "", err
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	cfg.Params["time_zone"] = `"+00:00"`
	cfg.Params["lock_wait_timeout"] = strconv.Itoa(config.LockWaitTimeout)
	cfg.Params["innodb_lock_wait_timeout"] = strconv.Itoa(config.InnodbLockWaitTimeout)
	cfg.Params["charset"] = "utf8mb4"
	cfg.Collation = "utf8mb4_bin"
	// Reconnect away from a host that failed over into a read-only
	// replica, rather than spinning on read-only errors forever.
	cfg.RejectReadOnly = true
	cfg.AllowNativePasswords = true
	return cfg.FormatDSN(), nil
}

// New opens a MySQL connection pool with Replication Booster's standard
// session settings applied, and verifies connectivity with a ping.
func New(inputDSN string, config *DBConfig) (*sql.DB, error) {
	dsn, err := newDSN(inputDSN, config)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(config.MaxOpenConnections)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(maxConnLifetime)
	return db, nil
}

// IsFatal reports whether a MySQL error should be treated as unrecoverable
// for the connection that produced it (the caller should give up rather
// than retry the same statement). Transient errors like lock waits and
// deadlocks are not fatal here because Replication Booster's SELECTs are
// read-only and simply get re-tried on the next queued item; it is a
// connectivity-loss class of error that warrants escalation.
func IsFatal(err error) bool {
	merr, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}
	switch merr.Number {
	case errCannotConnect, errConnLost:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a MySQL error is worth a transient backoff
// and retry rather than being counted as a permanent failure.
func IsRetryable(err error) bool {
	merr, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}
	switch merr.Number {
	case errLockWaitTimeout, errDeadlock, errCannotConnect, errConnLost, errReadOnly, errQueryKilled:
		return true
	default:
		return false
	}
}
