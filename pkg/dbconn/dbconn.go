package dbconn

import (
	"context"
	"database/sql"
	"fmt"
)

// AdminStatus holds the columns of SHOW SLAVE STATUS (or the
// SHOW REPLICA STATUS-equivalent) that Replication Booster reads.
type AdminStatus struct {
	SQLThreadRunning bool
}

// ShowSlaveStatus runs the SHOW SLAVE STATUS-equivalent admin query and
// extracts Slave_SQL_Running. It is column-name driven (rather than a
// fixed column index) because the set and order of columns returned by
// SHOW SLAVE STATUS varies across MySQL/MariaDB versions.
func ShowSlaveStatus(ctx context.Context, db *sql.DB) (*AdminStatus, error) {
	rows, err := db.QueryContext(ctx, "SHOW SLAVE STATUS")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, fmt.Errorf("dbconn: SHOW SLAVE STATUS returned no rows (is this a replica?)")
	}
	raw := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	status := &AdminStatus{}
	for i, col := range cols {
		if col == "Slave_SQL_Running" {
			status.SQLThreadRunning = string(raw[i]) == "Yes"
		}
	}
	return status, nil
}

// DataDir returns @@global.datadir with any trailing slash removed.
func DataDir(ctx context.Context, db *sql.DB) (string, error) {
	var dir string
	if err := db.QueryRowContext(ctx, "SELECT @@global.datadir").Scan(&dir); err != nil {
		return "", err
	}
	return trimTrailingSlash(dir), nil
}

func trimTrailingSlash(dir string) string {
	for len(dir) > 0 && dir[len(dir)-1] == '/' {
		dir = dir[:len(dir)-1]
	}
	return dir
}

// RelayLogInfoFile returns the path to the applier's position file.
// On server versions newer than 5.1 this is read from
// @@global.relay_log_info_file; older servers always used the fixed
// relative name "relay-log.info" inside the data directory.
//
// TODO: supporting table-type relay log info (relay_log_info_repository
// = TABLE, mysql.slave_relay_log_info) is not implemented; this always
// assumes the file-based repository.
func RelayLogInfoFile(ctx context.Context, db *sql.DB, dataDir string, serverVersion string) (string, error) {
	if !versionNewerThan51(serverVersion) {
		return dataDir + "/relay-log.info", nil
	}
	var name string
	if err := db.QueryRowContext(ctx, "SELECT @@global.relay_log_info_file").Scan(&name); err != nil {
		return "", err
	}
	return joinRelayLogInfoPath(dataDir, name), nil
}

// joinRelayLogInfoPath resolves a relay_log_info_file value against the
// data directory, following the original tool's rule: an absolute path is
// used verbatim, a "./name" path has the leading "./" stripped before
// being joined to the data directory, and any other relative name is
// joined as-is.
func joinRelayLogInfoPath(dataDir, name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name
	}
	trimmed := name
	if len(trimmed) > 1 && trimmed[0] == '.' && trimmed[1] == '/' {
		trimmed = trimmed[2:]
	}
	return dataDir + "/" + trimmed
}

// ServerVersion returns the server_version() string from the connection.
func ServerVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// versionNewerThan51 mirrors the original tool's "version > 50100" check,
// which compares the numeric MySQL version (MMmmpp, e.g. 50100 = 5.1.0)
// rather than parsing semver-style strings with dots.
func versionNewerThan51(version string) bool {
	n := parseNumericVersion(version)
	return n > 50100
}

// parseNumericVersion converts a "5.7.44-log"-shaped version string into
// MySQL's numeric version form (MMmmpp), e.g. "5.7.44" -> 50744.
func parseNumericVersion(version string) int {
	var major, minor, patch int
	_, _ = fmt.Sscanf(version, "%d.%d.%d", &major, &minor, &patch)
	if patch > 99 {
		patch = 99
	}
	return major*10000 + minor*100 + patch
}
