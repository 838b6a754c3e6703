package deconz

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deconz-community/go-deconz/internal/slip"
)

func newTestScheduler(t *testing.T) (*Scheduler, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { local.Close(); remote.Close() })

	stream := NewStream(local, log.New(io.Discard))
	return newScheduler(stream, log.New(io.Discard)), remote
}

// readWrittenFrame reads one SLIP-framed deCONZ frame off the "stick
// side" of the pipe, as sent by the scheduler via Stream.WriteFrame.
func readWrittenFrame(t *testing.T, conn net.Conn) Frame {
	t.Helper()
	r := slip.NewReader(conn)
	raw, err := r.ReadPacket()
	require.NoError(t, err)
	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	return f
}

func TestScheduler_SendCommandAllocatesSequenceAndTracksInFlight(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	done := make(chan Frame, 1)
	go func() { done <- readWrittenFrame(t, remote) }()

	s.sendCommand(enqueuedCommand{req: VersionRequest{}, entry: inFlightEntry{kind: inFlightInternal}})

	select {
	case f := <-done:
		assert.Equal(t, CommandVersion, f.CommandID)
		assert.Equal(t, byte(0), f.SequenceID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for written frame")
	}

	assert.True(t, s.hasInFlightForCommand(CommandVersion))
	assert.Equal(t, 1, s.inFlightCount())

	_, ok := s.takeInFlight(CommandVersion, 0)
	assert.True(t, ok)
	assert.False(t, s.hasInFlightForCommand(CommandVersion))
}

func TestScheduler_SequenceIDWrapsAndIncrements(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	go func() {
		r := slip.NewReader(remote)
		for {
			if _, err := r.ReadPacket(); err != nil {
				return
			}
		}
	}()

	first := s.nextSequenceID()
	second := s.nextSequenceID()
	assert.Equal(t, byte(0), first)
	assert.Equal(t, byte(1), second)

	s.nextSeq = 255
	assert.Equal(t, byte(255), s.nextSequenceID())
	assert.Equal(t, byte(0), s.nextSequenceID())
}

func TestScheduler_TryIO_BootstrapsDeviceStateWhenUnknown(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	done := make(chan Frame, 1)
	go func() { done <- readWrittenFrame(t, remote) }()

	s.tryIO()

	select {
	case f := <-done:
		assert.Equal(t, CommandDeviceState, f.CommandID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for device state request")
	}
	assert.True(t, s.hasInFlightForCommand(CommandDeviceState))
}

func TestScheduler_TryIO_DoesNotDuplicateInFlightDeviceStateRequest(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	go func() {
		r := slip.NewReader(remote)
		for {
			if _, err := r.ReadPacket(); err != nil {
				return
			}
		}
	}()

	s.tryIO()
	time.Sleep(20 * time.Millisecond)
	s.tryIO()

	assert.Equal(t, 1, s.inFlightCount())
}

func TestScheduler_TrySendAPSDataRequest_RequiresSlotsAvailable(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	req, err := NewSendDataRequest(DestinationAddress{Mode: DestNetworkAddress, NetworkAddress: 1}, 1, 0x0104, 6, 1, nil, SendDataOptions{}, 0)
	require.NoError(t, err)
	s.enqueue(req, inFlightEntry{kind: inFlightInternal})

	s.apsStatus = apsSlotsFull
	s.trySendAPSDataRequest()
	assert.Equal(t, 1, len(s.apsQueue), "should not have dequeued while slots are full")

	drained := make(chan Frame, 1)
	go func() { drained <- readWrittenFrame(t, remote) }()

	s.apsStatus = apsSlotsAvailable
	s.trySendAPSDataRequest()

	select {
	case f := <-drained:
		assert.Equal(t, CommandApsDataRequest, f.CommandID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for aps data request")
	}
	assert.Equal(t, 0, len(s.apsQueue))
	assert.Equal(t, apsPendingNextDeviceUpdate, s.apsStatus, "sending one flips status back to pending")
}

func TestScheduler_Enqueue_SplitsAPSFromGeneralQueue(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	sendReq, err := NewSendDataRequest(DestinationAddress{Mode: DestNetworkAddress, NetworkAddress: 1}, 1, 0x0104, 6, 1, nil, SendDataOptions{}, 0)
	require.NoError(t, err)

	s.enqueue(sendReq, inFlightEntry{kind: inFlightInternal})
	s.enqueue(VersionRequest{}, inFlightEntry{kind: inFlightInternal})

	assert.Len(t, s.apsQueue, 1)
	assert.Len(t, s.generalQueue, 1)
}

func TestScheduler_UpdateDeviceState_DerivesAPSStatus(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	s.updateDeviceState(DeviceState{NetworkState: NetworkConnected, ApsDataRequestFreeSlots: true})
	assert.Equal(t, apsSlotsAvailable, s.apsStatus)

	s.updateDeviceState(DeviceState{NetworkState: NetworkConnected, ApsDataRequestFreeSlots: false})
	assert.Equal(t, apsSlotsFull, s.apsStatus)
}

func TestScheduler_DispatchResponse_ExternalRepliesOverChannel(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	reply := make(chan commandResult, 1)
	body, _ := VersionRequest{}.Payload()
	frame := Frame{CommandID: CommandVersion, SequenceID: 0, Payload: append([]byte{0}, 5, 1, 2)}
	_ = body

	newState := s.dispatchResponse(frame, inFlightEntry{kind: inFlightExternal, reply: reply})
	assert.Nil(t, newState, "version responses carry no device state")

	select {
	case res := <-reply:
		require.NoError(t, res.Err)
		assert.Equal(t, frame, res.Frame)
	default:
		t.Fatal("expected a reply to have been delivered")
	}
}

func TestScheduler_DispatchResponse_InternalDeviceStatePollFoldsState(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	flags := byte(NetworkConnected) | 0x20
	frame := Frame{CommandID: CommandDeviceState, Payload: []byte{flags}}

	ds := s.dispatchResponse(frame, inFlightEntry{kind: inFlightInternal})
	require.NotNil(t, ds)
	assert.Equal(t, NetworkConnected, ds.NetworkState)
	assert.True(t, ds.ApsDataRequestFreeSlots)
}

func TestScheduler_DispatchResponse_InternalAPSDataIndicationBroadcasts(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	ch, cancel := s.broadcast.subscribe()
	defer cancel()

	var body []byte
	body = appendU16(body, 0)
	body = append(body, byte(NetworkConnected))     // device state
	body = append(body, byte(DestNetworkAddress))   // destination mode
	body = appendU16(body, 0x1111)                  // destination network address
	body = append(body, 1)                          // destination endpoint
	body = append(body, byte(SourceNetworkAddress))
	body = appendU16(body, 0x2222)
	body = append(body, 1)          // source endpoint
	body = appendU16(body, 0x0104)  // profile id
	body = appendU16(body, 0x0006)  // cluster id
	body = appendU16(body, 0)       // data length
	body = append(body, 0, 0, 200, 0, 0, 0, 0, byte(int8(-30))) // 2 reserved, link quality, 4 reserved, rssi

	frame := Frame{CommandID: CommandApsDataIndication, Payload: body}
	s.dispatchResponse(frame, inFlightEntry{kind: inFlightInternal})

	select {
	case got := <-ch:
		assert.Equal(t, uint16(0x0006), got.ClusterID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast delivery")
	}
}

func TestScheduler_Shutdown_FailsQueuedAndInFlightCallers(t *testing.T) {
	s, remote := newTestScheduler(t)
	defer remote.Close()

	queuedReply := make(chan commandResult, 1)
	s.enqueue(VersionRequest{}, inFlightEntry{kind: inFlightExternal, reply: queuedReply})

	inFlightReply := make(chan commandResult, 1)
	s.inFlight[CommandDeviceState] = map[byte]inFlightEntry{0: {kind: inFlightExternal, reply: inFlightReply}}

	s.shutdown()

	res := <-queuedReply
	assert.ErrorIs(t, res.Err, ErrTaskFailure)
	res = <-inFlightReply
	assert.ErrorIs(t, res.Err, ErrTaskFailure)
}
