package deconz

import (
	"context"
	"fmt"
)

// Handle is a cheap, concurrency-safe handle to a running Client. Any
// number of goroutines may hold a copy and call its methods
// concurrently; every call is serviced by the single scheduler
// goroutine the Handle was obtained from.
type Handle struct {
	inbox     chan<- commandRequestMsg
	broadcast *apsIndicationBroadcast
}

// SendCommand submits req to the scheduler and blocks until either a
// matching reply frame arrives, ctx is cancelled, or the connection
// fails. The returned Frame should be decoded with the matching
// response type's ParseResponse method.
func (h Handle) SendCommand(ctx context.Context, req Request) (Frame, error) {
	reply := make(chan commandResult, 1)
	select {
	case h.inbox <- commandRequestMsg{req: req, reply: reply}:
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			return Frame{}, res.Err
		}
		return res.Frame, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Do submits req and decodes the reply into resp in one step.
func Do[R Response](ctx context.Context, h Handle, req Request, resp R) error {
	frame, err := h.SendCommand(ctx, req)
	if err != nil {
		return err
	}
	if _, err := resp.ParseResponse(frame); err != nil {
		return fmt.Errorf("deconz: decoding %s reply: %w", req.CommandID(), err)
	}
	return nil
}

// SubscribeAPSDataIndication registers a new receiver of incoming APS
// data frames. The returned channel is lossy: a slow consumer loses
// the oldest buffered entries rather than stalling delivery to other
// subscribers or to the scheduler itself. Callers must invoke the
// returned cancel func once they are done to release the channel.
func (h Handle) SubscribeAPSDataIndication() (<-chan ReadReceivedDataResponse, func()) {
	return h.broadcast.subscribe()
}
