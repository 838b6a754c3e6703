package deconz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC16_KnownWrap(t *testing.T) {
	// The negation wraps mod 65536: a sum of 0x0200 yields 0xFE00.
	buf := []byte{0xFF, 0xFF, 0x02}
	got := crc16(buf)
	sum := uint16(0xFF) + uint16(0xFF) + uint16(0x02)
	assert.Equal(t, -sum, got)
}

func TestAppendAndVerifyCRC(t *testing.T) {
	buf := []byte{0x0D, 0x00, 0x00, 0x09, 0x00, 0x02, 0x00, 0x00, 0x00}
	withCRC := appendCRC(append([]byte{}, buf...))
	assert.True(t, verifyCRC(withCRC))

	withCRC[len(withCRC)-1] ^= 0x01
	assert.False(t, verifyCRC(withCRC))
}
