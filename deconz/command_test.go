package deconz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandIDRoundTrip(t *testing.T) {
	ids := []CommandID{
		CommandApsDataConfirm, CommandDeviceState, CommandChangeNetworkState,
		CommandReadParameter, CommandWriteParameter, CommandVersion,
		CommandDeviceStateChanged, CommandApsDataRequest, CommandApsDataIndication,
		CommandMacPollIndication, CommandMacBeaconIndication, CommandUpdateBootloader,
	}
	for _, id := range ids {
		parsed, err := parseCommandID(byte(id))
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.NotContains(t, id.String(), "CommandID(0x")
	}
}

func TestParseCommandID_Unknown(t *testing.T) {
	_, err := parseCommandID(0xFF)
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, ErrUnknownCommandID, protoErr.Kind)
}

func TestStatusCodeRoundTrip(t *testing.T) {
	for _, s := range []StatusCode{
		StatusSuccess, StatusFailure, StatusBusy, StatusTimeout,
		StatusUnsupported, StatusError, StatusNoNetwork, StatusInvalidValue,
	} {
		parsed, err := parseStatusCode(byte(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := parseStatusCode(0xFF)
	require.Error(t, err)
}

func TestNetworkStateMask(t *testing.T) {
	// Only the low two bits are significant; higher bits are ignored.
	state, err := parseNetworkState(0xFC | byte(NetworkConnected))
	require.NoError(t, err)
	assert.Equal(t, NetworkConnected, state)
}
