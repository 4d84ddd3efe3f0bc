package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIncludesAllFields(t *testing.T) {
	s := Snapshot{
		RelayLogFile:      "/var/lib/mysql/relay-bin.000005",
		RelayLogPos:       4321,
		ApplierTimestamp:  1000,
		PrefetchTimestamp: 1002,
		PrefetchPosition:  4400,
		SQLThreadRunning:  true,
		ShutdownRequested: false,
	}
	s.Stats.Pushed = 10
	s.Stats.Executed = 8

	body := Render(s)
	assert.Contains(t, body, "Relay log file: /var/lib/mysql/relay-bin.000005")
	assert.Contains(t, body, "Relay log (SQL thread) position: 4321")
	assert.Contains(t, body, "Is SQL thread running: true")
	assert.Contains(t, body, "Shutdown program: false")
	assert.Contains(t, body, "Queries pushed to workers: 10")
	assert.Contains(t, body, "Executed SELECT queries: 8")
}

func TestPublishAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "status.log")

	require.NoError(t, os.WriteFile(target, []byte("old"), 0o600))
	require.NoError(t, Publish(target, "new contents"))

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new contents", string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file should remain")
}

func TestPublishCreatesFileIfAbsent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "status.log")

	require.NoError(t, Publish(target, "first write"))
	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first write", string(contents))
}
