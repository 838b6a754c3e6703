package deconz

import "fmt"

// DestinationAddressMode selects which address form SendData or a
// confirm/indication frame carries.
type DestinationAddressMode byte

const (
	DestGroupAddress   DestinationAddressMode = 0x01
	DestNetworkAddress DestinationAddressMode = 0x02
	DestIEEEAddress    DestinationAddressMode = 0x03
)

// DestinationAddress is a tagged union over the three destination
// address forms the stick can carry.
type DestinationAddress struct {
	Mode           DestinationAddressMode
	GroupAddress   uint16
	NetworkAddress uint16
	IEEEAddress    uint64
}

func readDestinationAddress(r *FrameReader) DestinationAddress {
	mode := DestinationAddressMode(r.U8())
	switch mode {
	case DestGroupAddress:
		return DestinationAddress{Mode: mode, GroupAddress: r.U16()}
	case DestNetworkAddress:
		return DestinationAddress{Mode: mode, NetworkAddress: r.U16()}
	case DestIEEEAddress:
		return DestinationAddress{Mode: mode, IEEEAddress: r.U64()}
	default:
		r.err = &ProtocolError{Kind: ErrUnknownAddressMode, Value: int(mode)}
		return DestinationAddress{}
	}
}

// SourceAddressMode selects which address form a received or polled
// frame carries its originator in.
type SourceAddressMode byte

const (
	SourceNetworkAddress SourceAddressMode = 0x02
	SourceIEEEAddress    SourceAddressMode = 0x03
	SourceBoth           SourceAddressMode = 0x04
)

// SourceAddress is a tagged union over the address forms a frame's
// originator can be reported in; SourceBoth carries both.
type SourceAddress struct {
	Mode           SourceAddressMode
	NetworkAddress uint16
	IEEEAddress    uint64
}

func readSourceAddress(r *FrameReader) SourceAddress {
	mode := SourceAddressMode(r.U8())
	switch mode {
	case SourceNetworkAddress:
		return SourceAddress{Mode: mode, NetworkAddress: r.U16()}
	case SourceIEEEAddress:
		return SourceAddress{Mode: mode, IEEEAddress: r.U64()}
	case SourceBoth:
		return SourceAddress{Mode: mode, NetworkAddress: r.U16(), IEEEAddress: r.U64()}
	default:
		r.err = &ProtocolError{Kind: ErrUnknownAddressMode, Value: int(mode)}
		return SourceAddress{}
	}
}

// ReadReceivedDataRequest polls the stick for a buffered APS data
// indication; the single flag byte requests both network and IEEE
// source address forms when available.
type ReadReceivedDataRequest struct{}

func (ReadReceivedDataRequest) CommandID() CommandID { return CommandApsDataIndication }

func (ReadReceivedDataRequest) Payload() ([]byte, bool) {
	return []byte{0x04}, true
}

// ReadReceivedDataResponse is one inbound Zigbee APS frame delivered
// to this host, along with signal quality metadata.
type ReadReceivedDataResponse struct {
	DestinationAddress      DestinationAddress
	DestinationEndpoint     byte
	SourceAddress           SourceAddress
	SourceEndpoint          byte
	ProfileID               uint16
	ClusterID               uint16
	ApplicationServiceData  []byte
	LinkQuality             byte
	ReceivedSignalStrength  int8
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *ReadReceivedDataResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseReadReceivedDataResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseReadReceivedDataResponse(f Frame) (ReadReceivedDataResponse, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length
	state, err := parseDeviceState(r.U8())
	if err != nil {
		return ReadReceivedDataResponse{}, nil, err
	}

	resp := ReadReceivedDataResponse{
		DestinationAddress: readDestinationAddress(r),
	}
	resp.DestinationEndpoint = r.U8()
	resp.SourceAddress = readSourceAddress(r)
	resp.SourceEndpoint = r.U8()
	resp.ProfileID = r.U16()
	resp.ClusterID = r.U16()

	dataLen := r.U16()
	resp.ApplicationServiceData = r.Bytes(int(dataLen))

	r.U8() // reserved
	r.U8() // reserved
	resp.LinkQuality = r.U8()
	r.U8() // reserved
	r.U8() // reserved
	r.U8() // reserved
	r.U8() // reserved
	resp.ReceivedSignalStrength = r.I8()

	if r.Err() != nil {
		return ReadReceivedDataResponse{}, nil, r.Err()
	}
	return resp, &state, nil
}

// ReadConfirmDataRequest polls the stick for the result of a
// previously submitted SendData. The body must be present but empty:
// a zero-length body, not an absent one.
type ReadConfirmDataRequest struct{}

func (ReadConfirmDataRequest) CommandID() CommandID { return CommandApsDataConfirm }

func (ReadConfirmDataRequest) Payload() ([]byte, bool) {
	return nil, true
}

// ReadConfirmDataResponse reports the delivery outcome of a SendData
// request, identified by that request's RequestID.
type ReadConfirmDataResponse struct {
	RequestID           byte
	DestinationAddress  DestinationAddress
	DestinationEndpoint *byte
	SourceEndpoint      byte
	ConfirmStatus       StatusCode
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *ReadConfirmDataResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseReadConfirmDataResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseReadConfirmDataResponse(f Frame) (ReadConfirmDataResponse, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length
	state, err := parseDeviceState(r.U8())
	if err != nil {
		return ReadConfirmDataResponse{}, nil, err
	}

	resp := ReadConfirmDataResponse{RequestID: r.U8()}
	resp.DestinationAddress = readDestinationAddress(r)
	if resp.DestinationAddress.Mode == DestNetworkAddress || resp.DestinationAddress.Mode == DestIEEEAddress {
		ep := r.U8()
		resp.DestinationEndpoint = &ep
	}
	resp.SourceEndpoint = r.U8()
	status, err := parseStatusCode(r.U8())
	if err != nil {
		return ReadConfirmDataResponse{}, nil, err
	}
	resp.ConfirmStatus = status

	if r.Err() != nil {
		return ReadConfirmDataResponse{}, nil, r.Err()
	}
	return resp, &state, nil
}

// SendDataOptions controls optional behavior of a SendData submission.
type SendDataOptions struct {
	UseAPSAcks bool
}

// SendDataRequest submits an outbound Zigbee APS frame for
// transmission. Payload is capped at 127 bytes by the vendor
// protocol; callers exceeding that limit get ErrPayloadTooLarge from
// NewSendDataRequest.
type SendDataRequest struct {
	RequestID           byte
	DestinationAddress  DestinationAddress
	DestinationEndpoint byte
	ProfileID           uint16
	ClusterID           uint16
	SourceEndpoint      byte
	Payload             []byte
	Options             SendDataOptions
	// Radius is the maximum hop count; 0 means unlimited.
	Radius byte
}

// ErrPayloadTooLarge is returned by NewSendDataRequest when the
// supplied application payload exceeds the vendor protocol's 127-byte
// limit for a single APS frame.
var ErrPayloadTooLarge = fmt.Errorf("deconz: aps payload exceeds 127 bytes")

// NewSendDataRequest validates payload size before constructing a
// SendDataRequest. RequestID is left at zero; neither this function
// nor the scheduler sets it, so the caller assigns it if needed.
func NewSendDataRequest(dest DestinationAddress, destEndpoint byte, profileID, clusterID uint16, sourceEndpoint byte, payload []byte, opts SendDataOptions, radius byte) (SendDataRequest, error) {
	if len(payload) > 127 {
		return SendDataRequest{}, ErrPayloadTooLarge
	}
	return SendDataRequest{
		DestinationAddress:  dest,
		DestinationEndpoint: destEndpoint,
		ProfileID:           profileID,
		ClusterID:           clusterID,
		SourceEndpoint:      sourceEndpoint,
		Payload:             payload,
		Options:             opts,
		Radius:              radius,
	}, nil
}

func (SendDataRequest) CommandID() CommandID { return CommandApsDataRequest }

func (r SendDataRequest) Payload() ([]byte, bool) {
	body := []byte{r.RequestID, 0} // second byte: flags, none defined yet
	switch r.DestinationAddress.Mode {
	case DestGroupAddress:
		body = append(body, byte(DestGroupAddress))
		body = appendU16(body, r.DestinationAddress.GroupAddress)
	case DestNetworkAddress:
		body = append(body, byte(DestNetworkAddress))
		body = appendU16(body, r.DestinationAddress.NetworkAddress)
		body = append(body, r.DestinationEndpoint)
	case DestIEEEAddress:
		body = append(body, byte(DestIEEEAddress))
		body = appendU64(body, r.DestinationAddress.IEEEAddress)
		body = append(body, r.DestinationEndpoint)
	}

	body = appendU16(body, r.ProfileID)
	body = appendU16(body, r.ClusterID)
	body = append(body, r.SourceEndpoint)
	body = appendU16(body, uint16(len(r.Payload)))
	body = append(body, r.Payload...)

	if r.Options.UseAPSAcks {
		body = append(body, 0x04)
	} else {
		body = append(body, 0)
	}
	body = append(body, r.Radius)

	return body, true
}

// SendDataResponse only echoes the request id the caller submitted;
// the eventual delivery outcome arrives later as a ReadConfirmDataResponse.
type SendDataResponse struct {
	RequestID byte
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *SendDataResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseSendDataResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseSendDataResponse(f Frame) (SendDataResponse, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length
	state, err := parseDeviceState(r.U8())
	if err != nil {
		return SendDataResponse{}, nil, err
	}
	resp := SendDataResponse{RequestID: r.U8()}
	if r.Err() != nil {
		return SendDataResponse{}, nil, r.Err()
	}
	return resp, &state, nil
}
