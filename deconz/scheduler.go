package deconz

import (
	"context"

	"github.com/charmbracelet/log"
)

const maxInFlightCommands = 16

// apsDataRequestStatus tracks whether the stick currently has room to
// accept another outbound APS data request.
type apsDataRequestStatus int

const (
	// apsPendingNextDeviceUpdate means we don't yet know whether the
	// stick has a free slot: either no DeviceState has been observed
	// yet, or we just submitted a request and are waiting on the next
	// DeviceState update to tell us whether more can follow.
	apsPendingNextDeviceUpdate apsDataRequestStatus = iota
	apsSlotsAvailable
	apsSlotsFull
)

func (s apsDataRequestStatus) hasSlotsAvailable() bool {
	return s == apsSlotsAvailable
}

// commandResult is delivered back to an external caller once the
// scheduler has matched a reply frame to their submitted command.
type commandResult struct {
	Frame Frame
	Err   error
}

type inFlightKind int

const (
	inFlightExternal inFlightKind = iota
	inFlightInternal
)

// inFlightEntry tracks one outstanding command awaiting a reply,
// keyed by (command id, sequence id) in Scheduler.inFlight. External
// entries carry a reply channel back to the originating Handle call;
// internal entries are the scheduler's own housekeeping requests and
// need no reply plumbing.
type inFlightEntry struct {
	kind  inFlightKind
	reply chan commandResult
}

type enqueuedCommand struct {
	req   Request
	entry inFlightEntry
}

// commandRequestMsg is sent over Scheduler.inbox by a Handle on
// behalf of an external caller.
type commandRequestMsg struct {
	req   Request
	reply chan commandResult
}

// Scheduler is the single owner of the serial stream and all
// protocol-level state: the in-flight command table, the two
// dispatch queues, sequence id allocation, and the last-known
// DeviceState. Every interaction with it happens either by receiving
// frames off the stream or messages off its inbox; there is no
// shared, lockable state, by design.
type Scheduler struct {
	stream *Stream
	log    *log.Logger

	inbox chan commandRequestMsg

	nextSeq     byte
	deviceState *DeviceState
	fatalErr    error

	generalQueue []enqueuedCommand
	apsQueue     []enqueuedCommand
	inFlight     map[CommandID]map[byte]inFlightEntry
	apsStatus    apsDataRequestStatus

	broadcast *apsIndicationBroadcast
}

func newScheduler(stream *Stream, logger *log.Logger) *Scheduler {
	return &Scheduler{
		stream:    stream,
		log:       logger,
		inbox:     make(chan commandRequestMsg),
		apsStatus: apsPendingNextDeviceUpdate,
		inFlight:  make(map[CommandID]map[byte]inFlightEntry),
		broadcast: newAPSIndicationBroadcast(),
	}
}

// run is the scheduler's main loop. It owns the stream exclusively
// for its entire lifetime and returns only once the transport has
// failed or ctx has been cancelled.
func (s *Scheduler) run(ctx context.Context) {
	defer s.shutdown()
	for {
		s.tryIO()
		if s.fatalErr != nil {
			s.log.Errorf("transport write failed, shutting down: %s", s.fatalErr)
			return
		}

		select {
		case <-ctx.Done():
			return
		case fr, ok := <-s.stream.Frames():
			if !ok {
				s.log.Error("transport closed, shutting down")
				return
			}
			if fr.err != nil {
				s.log.Errorf("transport read failed, shutting down: %s", fr.err)
				return
			}
			s.handleFrame(fr.frame)
		case msg := <-s.inbox:
			s.enqueue(msg.req, inFlightEntry{kind: inFlightExternal, reply: msg.reply})
		}
	}
}

// tryIO drives the pacing algorithm: request a DeviceState if we
// don't have one yet, service any pending APS reads and submissions
// the last-known DeviceState flagged, then drain the general queue up
// to the in-flight cap.
func (s *Scheduler) tryIO() {
	if s.deviceState == nil {
		s.requestDeviceState()
		return
	}

	ds := *s.deviceState
	if ds.connected() {
		if ds.ApsDataIndicationPending {
			s.requestAPSDataIndication()
		}
		if ds.ApsDataConfirmPending {
			s.requestAPSDataConfirm()
		}
		s.trySendAPSDataRequest()
	}

	for !s.inFlightFull() && len(s.generalQueue) > 0 {
		cmd := s.generalQueue[0]
		s.generalQueue = s.generalQueue[1:]
		s.sendCommand(cmd)
	}
}

func (s *Scheduler) requestDeviceState() {
	if s.hasInFlightForCommand(CommandDeviceState) {
		return
	}
	s.sendCommand(enqueuedCommand{
		req:   DeviceStateRequest{},
		entry: inFlightEntry{kind: inFlightInternal},
	})
}

func (s *Scheduler) requestAPSDataIndication() {
	if s.hasInFlightForCommand(CommandApsDataIndication) {
		return
	}
	s.sendCommand(enqueuedCommand{
		req:   ReadReceivedDataRequest{},
		entry: inFlightEntry{kind: inFlightInternal},
	})
}

func (s *Scheduler) requestAPSDataConfirm() {
	if s.hasInFlightForCommand(CommandApsDataConfirm) {
		return
	}
	s.sendCommand(enqueuedCommand{
		req:   ReadConfirmDataRequest{},
		entry: inFlightEntry{kind: inFlightInternal},
	})
}

// trySendAPSDataRequest pops one queued SendData submission once the
// stick has reported a free slot. Sending one immediately moves the
// flow-control state back to pending: we won't know whether another
// slot is free until the next DeviceState update arrives.
func (s *Scheduler) trySendAPSDataRequest() {
	if !s.apsStatus.hasSlotsAvailable() || s.inFlightFull() {
		return
	}
	if len(s.apsQueue) == 0 {
		return
	}
	cmd := s.apsQueue[0]
	s.apsQueue = s.apsQueue[1:]
	s.apsStatus = apsPendingNextDeviceUpdate
	s.sendCommand(cmd)
}

func (s *Scheduler) enqueue(req Request, entry inFlightEntry) {
	cmd := enqueuedCommand{req: req, entry: entry}
	if req.CommandID() == CommandApsDataRequest {
		s.apsQueue = append(s.apsQueue, cmd)
		return
	}
	s.generalQueue = append(s.generalQueue, cmd)
}

func (s *Scheduler) sendCommand(cmd enqueuedCommand) {
	seq := s.nextSequenceID()
	cmdID := cmd.req.CommandID()

	if s.inFlight[cmdID] == nil {
		s.inFlight[cmdID] = make(map[byte]inFlightEntry)
	}
	s.inFlight[cmdID][seq] = cmd.entry

	body, hasBody := cmd.req.Payload()
	if err := s.stream.WriteFrame(cmdID, seq, body, hasBody); err != nil {
		delete(s.inFlight[cmdID], seq)
		if cmd.entry.kind == inFlightExternal {
			cmd.entry.reply <- commandResult{Err: ErrTaskFailure}
		}
		s.fatalErr = err
	}
}

func (s *Scheduler) nextSequenceID() byte {
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

func (s *Scheduler) hasInFlightForCommand(id CommandID) bool {
	return len(s.inFlight[id]) > 0
}

func (s *Scheduler) inFlightCount() int {
	n := 0
	for _, m := range s.inFlight {
		n += len(m)
	}
	return n
}

func (s *Scheduler) inFlightFull() bool {
	return s.inFlightCount() >= maxInFlightCommands
}

func (s *Scheduler) takeInFlight(id CommandID, seq byte) (inFlightEntry, bool) {
	m, ok := s.inFlight[id]
	if !ok {
		return inFlightEntry{}, false
	}
	entry, ok := m[seq]
	if ok {
		delete(m, seq)
	}
	return entry, ok
}

func (s *Scheduler) updateDeviceState(ds DeviceState) {
	if ds.ApsDataRequestFreeSlots {
		s.apsStatus = apsSlotsAvailable
	} else {
		s.apsStatus = apsSlotsFull
	}
	s.log.Debugf("device state updated: %+v", ds)
	s.deviceState = &ds
}

// handleFrame routes one incoming frame either to the unsolicited
// notification handlers or to whichever in-flight command it
// answers.
func (s *Scheduler) handleFrame(f Frame) {
	var newState *DeviceState

	switch f.CommandID {
	case CommandDeviceStateChanged:
		_, ds, err := parseDeviceStateChanged(f)
		if err != nil {
			s.log.Warnf("bad device-state-changed frame: %s", err)
			return
		}
		newState = ds

	case CommandMacBeaconIndication:
		ind, _, err := parseMACBeaconIndication(f)
		if err != nil {
			s.log.Warnf("bad mac beacon indication: %s", err)
			return
		}
		s.log.Debugf("mac beacon indication: %+v", ind)

	case CommandMacPollIndication:
		ind, _, err := parseMACPollIndication(f)
		if err != nil {
			s.log.Warnf("bad mac poll indication: %s", err)
			return
		}
		s.log.Debugf("mac poll indication: %+v", ind)

	default:
		entry, ok := s.takeInFlight(f.CommandID, f.SequenceID)
		if !ok {
			s.log.Warnf("frame %s/seq=%d has no in-flight handler registered, dropping", f.CommandID, f.SequenceID)
			return
		}
		newState = s.dispatchResponse(f, entry)
	}

	if newState != nil {
		s.updateDeviceState(*newState)
	}
}

// dispatchResponse completes one in-flight command: external commands
// are handed their raw frame back over their reply channel, while the
// scheduler's own internal housekeeping requests (APS reads,
// DeviceState polls) are parsed and acted on here. Either way, a
// DeviceState embedded in the reply is extracted and returned so
// handleFrame can fold it into scheduler state.
func (s *Scheduler) dispatchResponse(f Frame, entry inFlightEntry) *DeviceState {
	if entry.kind == inFlightExternal {
		entry.reply <- commandResult{Frame: f}
		return s.foldDeviceState(f)
	}

	switch f.CommandID {
	case CommandApsDataIndication:
		resp, ds, err := parseReadReceivedDataResponse(f)
		if err != nil {
			s.log.Warnf("bad aps data indication: %s", err)
			return nil
		}
		s.broadcast.publish(resp)
		return ds

	case CommandApsDataConfirm:
		resp, ds, err := parseReadConfirmDataResponse(f)
		if err != nil {
			s.log.Warnf("bad aps data confirm: %s", err)
			return nil
		}
		s.log.Debugf("aps data confirm: request=%d status=%s", resp.RequestID, resp.ConfirmStatus)
		return ds

	case CommandDeviceState:
		_, ds, err := parseDeviceStateResponse(f)
		if err != nil {
			s.log.Warnf("bad device state response: %s", err)
			return nil
		}
		return ds

	default:
		s.log.Warnf("received internal response for unhandled command id %s", f.CommandID)
		return nil
	}
}

// foldDeviceState extracts the DeviceState embedded in a response
// frame, for command types that carry one, without otherwise acting
// on the response's contents.
func (s *Scheduler) foldDeviceState(f Frame) *DeviceState {
	switch f.CommandID {
	case CommandDeviceState:
		_, ds, err := parseDeviceStateResponse(f)
		if err != nil {
			return nil
		}
		return ds
	case CommandApsDataIndication:
		_, ds, err := parseReadReceivedDataResponse(f)
		if err != nil {
			return nil
		}
		return ds
	case CommandApsDataConfirm:
		_, ds, err := parseReadConfirmDataResponse(f)
		if err != nil {
			return nil
		}
		return ds
	case CommandApsDataRequest:
		_, ds, err := parseSendDataResponse(f)
		if err != nil {
			return nil
		}
		return ds
	default:
		return nil
	}
}

// shutdown fails every queued and in-flight external command once the
// scheduler loop exits, so no Handle caller blocks forever.
func (s *Scheduler) shutdown() {
	s.stream.Close()

	fail := func(entry inFlightEntry) {
		if entry.kind == inFlightExternal {
			entry.reply <- commandResult{Err: ErrTaskFailure}
		}
	}
	for _, cmd := range s.generalQueue {
		fail(cmd.entry)
	}
	for _, cmd := range s.apsQueue {
		fail(cmd.entry)
	}
	for _, m := range s.inFlight {
		for _, entry := range m {
			fail(entry)
		}
	}

	// Keep answering the inbox with ErrTaskFailure so SendCommand
	// callers, now or later, don't block on a scheduler that has
	// stopped. The inbox is never closed, so this goroutine stays alive
	// for the rest of the process.
	go func() {
		for msg := range s.inbox {
			msg.reply <- commandResult{Err: ErrTaskFailure}
		}
	}()
}
