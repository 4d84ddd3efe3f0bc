package hostcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalLoopback(t *testing.T) {
	local, err := IsLocal("127.0.0.1")
	require.NoError(t, err)
	assert.True(t, local)
}

func TestIsLocalUnroutableAddress(t *testing.T) {
	local, err := IsLocal("203.0.113.1")
	require.NoError(t, err)
	assert.False(t, local)
}

func TestIsLocalUnresolvableHost(t *testing.T) {
	_, err := IsLocal("this-host-does-not-resolve.invalid")
	assert.Error(t, err)
}

func TestLocalIPv4AddrsContainsLoopback(t *testing.T) {
	addrs, err := localIPv4Addrs()
	require.NoError(t, err)
	_, ok := addrs["127.0.0.1"]
	assert.True(t, ok)
}
