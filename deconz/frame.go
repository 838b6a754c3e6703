package deconz

import (
	"encoding/binary"
	"fmt"
)

// Frame is a decoded incoming deCONZ packet: the 5-byte header plus
// whatever bytes followed it on the wire, with the trailing CRC
// already stripped and verified. Payload still contains the optional
// 2-byte payload-length field for commands that carry one; individual
// command response parsers are responsible for reading past it via a
// FrameReader, matching how much of the vendor protocol re-states its
// own length inside the body.
type Frame struct {
	CommandID   CommandID
	SequenceID  byte
	Status      StatusCode
	TotalLength uint16
	Payload     []byte
}

// Reader returns a cursor over the frame's payload bytes.
func (f Frame) Reader() *FrameReader {
	return &FrameReader{buf: f.Payload}
}

// EncodeFrame produces the wire bytes for an outgoing command,
// including the trailing CRC. Status is always reserved (0) on
// outgoing frames. hasBody=false and hasBody=true with an empty body
// are distinct: some commands (APS data confirm read) require an
// explicit zero-length body rather than an absent one.
func EncodeFrame(cmd CommandID, seq byte, body []byte, hasBody bool) []byte {
	// total_length counts the 5-byte header plus, when a body is
	// present, the 2-byte payload-length field and the payload itself.
	frameLen := 5
	if hasBody {
		frameLen += 2 + len(body)
	}

	buf := make([]byte, 0, frameLen+2)
	buf = append(buf, byte(cmd), seq, 0)
	buf = appendU16(buf, uint16(frameLen))
	if hasBody {
		buf = appendU16(buf, uint16(len(body)))
		buf = append(buf, body...)
	}
	return appendCRC(buf)
}

// DecodeFrame parses one SLIP-deframed packet (CRC included) into a
// Frame. Both the too-small and too-large checks, and the CRC
// verification, are surfaced as distinct *ProtocolError values so the
// caller (the stream's read loop) can log and continue rather than
// tear down the connection.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 2 {
		return Frame{}, &ProtocolError{Kind: ErrFrameTooSmall, Value: len(raw)}
	}
	if !verifyCRC(raw) {
		return Frame{}, &ProtocolError{Kind: ErrCRCMismatch}
	}
	body := raw[:len(raw)-2]

	if len(body) < 5 {
		return Frame{}, &ProtocolError{Kind: ErrFrameTooSmall, Value: len(body)}
	}

	cmd, err := parseCommandID(body[0])
	if err != nil {
		return Frame{}, err
	}
	seq := body[1]
	status, err := parseStatusCode(body[2])
	if err != nil {
		return Frame{}, err
	}
	totalLength := binary.LittleEndian.Uint16(body[3:5])

	payload := body[5:]
	if len(payload) > int(totalLength)-5 {
		return Frame{}, &ProtocolError{Kind: ErrFrameTooLarge, Value: len(payload) - (int(totalLength) - 5)}
	}

	return Frame{
		CommandID:   cmd,
		SequenceID:  seq,
		Status:      status,
		TotalLength: totalLength,
		Payload:     payload,
	}, nil
}

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// FrameReader is a cursor over a Frame's payload bytes, providing
// little-endian primitive reads. A short read sets a sticky error
// returned by Err; once set, further reads return zero values instead
// of panicking, so a parser can perform a whole response's worth of
// reads and check Err once at the end.
type FrameReader struct {
	buf []byte
	off int
	err error
}

// Err returns the first short-read error encountered, if any.
func (r *FrameReader) Err() error {
	return r.err
}

// Remaining reports how many unread bytes remain.
func (r *FrameReader) Remaining() int {
	if r.off > len(r.buf) {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *FrameReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("deconz: short frame read (need %d, have %d)", n, r.Remaining())
		return false
	}
	return true
}

// U8 reads one byte.
func (r *FrameReader) U8() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

// I8 reads one signed byte.
func (r *FrameReader) I8() int8 {
	return int8(r.U8())
}

// U16 reads a little-endian uint16.
func (r *FrameReader) U16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

// U32 reads a little-endian uint32.
func (r *FrameReader) U32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

// U64 reads a little-endian uint64.
func (r *FrameReader) U64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

// Bytes reads n raw bytes, copied so the caller may retain them past
// the lifetime of the underlying frame buffer.
func (r *FrameReader) Bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

// Rest reads all remaining bytes.
func (r *FrameReader) Rest() []byte {
	return r.Bytes(r.Remaining())
}
