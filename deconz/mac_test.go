package deconz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMACBeaconIndication(t *testing.T) {
	var body []byte
	body = appendU16(body, 0) // echoed payload length, unused by parser
	body = appendU16(body, 0x1122) // source network address
	body = appendU16(body, 0x3344) // pan id
	body = append(body, 11)        // channel
	body = append(body, 0x01)      // flags
	body = append(body, 2)         // update id
	body = append(body, 0xAA, 0xBB) // trailing beacon data

	ind, ds, err := parseMACBeaconIndication(Frame{Payload: body})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, uint16(0x1122), ind.SourceAddress.NetworkAddress)
	assert.Equal(t, uint16(0x3344), ind.NetworkPANID)
	assert.Equal(t, byte(11), ind.Channel)
	assert.Equal(t, []byte{0xAA, 0xBB}, ind.Data)
}

func TestParseMACPollIndication_WithNeighborTable(t *testing.T) {
	var body []byte
	body = appendU16(body, 0)
	body = append(body, byte(SourceNetworkAddress))
	body = appendU16(body, 0x5566)
	body = append(body, 200)        // link quality
	body = append(body, byte(int8(-40)))
	body = appendU32(body, 60)
	body = appendU32(body, 120)

	ind, ds, err := parseMACPollIndication(Frame{Payload: body})
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, byte(200), ind.LinkQuality)
	assert.Equal(t, int8(-40), ind.ReceivedSignalStrength)
	require.NotNil(t, ind.NeighborTableState)
	assert.Equal(t, uint32(60), ind.NeighborTableState.LifeTime)
	assert.Equal(t, uint32(120), ind.NeighborTableState.DeviceTimeout)
}

func TestParseMACPollIndication_NoNeighborTable(t *testing.T) {
	var body []byte
	body = appendU16(body, 0)
	body = append(body, byte(SourceIEEEAddress))
	body = appendU64(body, 0x0102030405060708)
	body = append(body, 150)
	body = append(body, byte(int8(-70)))

	ind, _, err := parseMACPollIndication(Frame{Payload: body})
	require.NoError(t, err)
	assert.Nil(t, ind.NeighborTableState)
	assert.Equal(t, uint64(0x0102030405060708), ind.SourceAddress.IEEEAddress)
}
