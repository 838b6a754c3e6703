package deconz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceState_AllBitsSet(t *testing.T) {
	flags := byte(NetworkConnected) | 0x04 | 0x08 | 0x10 | 0x20
	state, err := parseDeviceState(flags)
	require.NoError(t, err)

	assert.Equal(t, NetworkConnected, state.NetworkState)
	assert.True(t, state.ApsDataConfirmPending)
	assert.True(t, state.ApsDataIndicationPending)
	assert.True(t, state.ConfigurationChanged)
	assert.True(t, state.ApsDataRequestFreeSlots)
	assert.True(t, state.connected())
}

func TestParseDeviceState_OfflineNoFlags(t *testing.T) {
	state, err := parseDeviceState(byte(NetworkOffline))
	require.NoError(t, err)

	assert.False(t, state.ApsDataConfirmPending)
	assert.False(t, state.ApsDataIndicationPending)
	assert.False(t, state.connected())
}
