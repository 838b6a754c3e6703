package deconz

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	serial "github.com/daedaluz/goserial"

	"github.com/deconz-community/go-deconz/internal/slip"
)

// frameResult is one outcome of the stream's background read loop: a
// decoded frame, or an error if the frame was malformed or the
// transport itself failed.
type frameResult struct {
	frame Frame
	err   error
}

// Stream wraps a byte-oriented transport (a serial port, or anything
// else implementing io.ReadWriteCloser) with SLIP framing and the
// deCONZ frame codec. A background goroutine continuously decodes
// incoming frames onto Frames(); WriteFrame is safe to call from the
// scheduler goroutine between reads. Nothing else touches the
// transport once a Stream has been constructed.
type Stream struct {
	rwc    io.ReadWriteCloser
	frames chan frameResult
	log    *log.Logger
}

// NewStream wraps an already-open transport and starts its read loop.
// Use OpenSerial to open and configure an actual serial device.
func NewStream(rwc io.ReadWriteCloser, logger *log.Logger) *Stream {
	s := &Stream{
		rwc:    rwc,
		frames: make(chan frameResult),
		log:    logger,
	}
	go s.readLoop(slip.NewReader(rwc))
	return s
}

// OpenSerial opens a deCONZ-compatible USB/serial stick at the given
// device path (e.g. /dev/ttyUSB0) and configures it the way the
// vendor firmware expects: 38400 baud, 8 data bits, no parity, one
// stop bit, no flow control, raw mode.
func OpenSerial(devicePath string, logger *log.Logger) (*Stream, error) {
	port, err := serial.Open(devicePath, serial.NewOptions().SetReadTimeout(30*time.Second))
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}

	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, &TransportError{Op: "configure", Err: err}
	}

	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, &TransportError{Op: "configure", Err: err}
	}
	attrs.SetSpeed(serial.B38400)
	attrs.Cflag &^= serial.CRTSCTS
	attrs.Cflag |= serial.CLOCAL | serial.CREAD
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, &TransportError{Op: "configure", Err: err}
	}

	return NewStream(serialPortCloser{port}, logger), nil
}

// serialPortCloser adapts *serial.Port to io.ReadWriteCloser.
type serialPortCloser struct {
	*serial.Port
}

func (s *Stream) readLoop(reader *slip.Reader) {
	defer close(s.frames)
	for {
		raw, err := reader.ReadPacket()
		if errors.Is(err, slip.ErrProtocol) {
			s.log.Warnf("dropping malformed slip packet: %s", err)
			continue
		}
		if err != nil {
			s.frames <- frameResult{err: &TransportError{Op: "read", Err: err}}
			return
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			s.log.Warnf("dropping malformed frame: %s", err)
			continue
		}
		s.frames <- frameResult{frame: frame}
	}
}

// Frames returns the channel of decoded incoming frames. When the
// transport fails, one frameResult carrying the read error is sent and
// the channel is then closed; the scheduler shuts down on either.
func (s *Stream) Frames() <-chan frameResult {
	return s.frames
}

// WriteFrame encodes and writes one outgoing command frame. Write
// failures are always fatal to the connection: there is no way to
// recover a partially written SLIP packet mid-stream.
func (s *Stream) WriteFrame(cmd CommandID, seq byte, body []byte, hasBody bool) error {
	raw := EncodeFrame(cmd, seq, body, hasBody)
	framed := slip.Encode(raw)
	if _, err := s.rwc.Write(framed); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Close releases the underlying transport, which unblocks the read
// loop's pending Read with an error and causes Frames() to close.
func (s *Stream) Close() error {
	return s.rwc.Close()
}
