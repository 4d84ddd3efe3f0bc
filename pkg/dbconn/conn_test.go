package dbconn

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestNewDSN(t *testing.T) {
	dsn := "root:password@tcp(127.0.0.1:3306)/test"
	resp, err := newDSN(dsn, NewDBConfig())
	assert.NoError(t, err)

	cfg, err := mysql.ParseDSN(resp)
	assert.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "test", cfg.DBName)
	assert.True(t, cfg.RejectReadOnly)
	assert.True(t, cfg.AllowNativePasswords)
	assert.Equal(t, "utf8mb4_bin", cfg.Collation)
	assert.Equal(t, `"+00:00"`, cfg.Params["time_zone"])
	assert.Equal(t, "30", cfg.Params["lock_wait_timeout"])
	assert.Equal(t, "3", cfg.Params["innodb_lock_wait_timeout"])
}

func TestNewDSNInvalid(t *testing.T) {
	resp, err := newDSN("not-a-dsn", NewDBConfig())
	assert.Error(t, err)
	assert.Empty(t, resp)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&mysql.MySQLError{Number: errCannotConnect}))
	assert.True(t, IsFatal(&mysql.MySQLError{Number: errConnLost}))
	assert.False(t, IsFatal(&mysql.MySQLError{Number: errDeadlock}))
	assert.False(t, IsFatal(assertErr{}))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: errLockWaitTimeout}))
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: errDeadlock}))
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: errReadOnly}))
	assert.False(t, IsRetryable(&mysql.MySQLError{Number: 1146})) // ER_NO_SUCH_TABLE
	assert.False(t, IsRetryable(assertErr{}))
}

func TestParseNumericVersion(t *testing.T) {
	assert.Equal(t, 50744, parseNumericVersion("5.7.44-log"))
	assert.Equal(t, 80034, parseNumericVersion("8.0.34"))
	assert.True(t, versionNewerThan51("5.7.44"))
	assert.False(t, versionNewerThan51("5.1.0"))
}

type assertErr struct{}

func (assertErr) Error() string { return "not a mysql error" }
