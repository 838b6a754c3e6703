package deconz

import (
	"context"

	"github.com/charmbracelet/log"
)

// Config controls how a Client opens and logs its connection to the
// stick. Logger defaults to log.Default() when nil.
type Config struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0 or
	// /dev/ttyACM0.
	Device string
	Logger *log.Logger
}

// Client owns a connection to a deCONZ stick: the serial transport,
// the scheduler goroutine multiplexing commands over it, and the
// context controlling the scheduler's lifetime. Callers interact with
// it exclusively through the Handle returned by Start.
type Client struct {
	stream    *Stream
	scheduler *Scheduler
	cancel    context.CancelFunc
	done      chan struct{}
}

// Start opens the configured serial device, launches the scheduler
// goroutine, and returns a Handle for submitting commands. The
// returned Client must be closed to release the underlying transport.
func Start(cfg Config) (*Client, Handle, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	stream, err := OpenSerial(cfg.Device, logger)
	if err != nil {
		return nil, Handle{}, err
	}

	scheduler := newScheduler(stream, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		scheduler.run(ctx)
	}()

	client := &Client{
		stream:    stream,
		scheduler: scheduler,
		cancel:    cancel,
		done:      done,
	}
	handle := Handle{inbox: scheduler.inbox, broadcast: scheduler.broadcast}
	return client, handle, nil
}

// Close stops the scheduler and waits for its goroutine to exit,
// releasing the serial device.
func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return nil
}
