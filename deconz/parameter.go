package deconz

import "fmt"

// ParameterID identifies one entry of the stick's configuration
// parameter table, as carried in the first payload byte of both
// ReadParameter and WriteParameter frames.
type ParameterID byte

const (
	ParamMACAddress            ParameterID = 0x01
	ParamNetworkPANID          ParameterID = 0x05
	ParamNetworkAddress        ParameterID = 0x07
	ParamAPSDesignatedCoord    ParameterID = 0x09
	ParamChannelMask           ParameterID = 0x0A
	ParamAPSExtendedPANID      ParameterID = 0x0B
	ParamTrustCenterAddress    ParameterID = 0x0E
	ParamSecurityMode          ParameterID = 0x10
	ParamPredefinedNetworkPANID ParameterID = 0x15
	ParamNetworkKey            ParameterID = 0x18
	ParamCurrentChannel        ParameterID = 0x1C
	ParamProtocolVersion       ParameterID = 0x22
	ParamNetworkUpdateID       ParameterID = 0x24
	ParamWatchdogTTL           ParameterID = 0x26
	ParamNetworkFrameCounter   ParameterID = 0x27
)

// String returns the parameter's table name, or ParameterID(0x..) for
// an id that is not in the table.
func (p ParameterID) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ParameterID(0x%02x)", byte(p))
}

var parameterNames = map[ParameterID]string{
	ParamMACAddress:             "MACAddress",
	ParamNetworkPANID:           "NetworkPANID",
	ParamNetworkAddress:         "NetworkAddress",
	ParamAPSDesignatedCoord:     "APSDesignatedCoordinator",
	ParamChannelMask:            "ChannelMask",
	ParamAPSExtendedPANID:       "APSExtendedPANID",
	ParamTrustCenterAddress:     "TrustCenterAddress",
	ParamSecurityMode:           "SecurityMode",
	ParamPredefinedNetworkPANID: "PredefinedNetworkPANID",
	ParamNetworkKey:             "NetworkKey",
	ParamCurrentChannel:         "CurrentChannel",
	ParamProtocolVersion:        "ProtocolVersion",
	ParamNetworkUpdateID:        "NetworkUpdateID",
	ParamWatchdogTTL:            "WatchdogTTL",
	ParamNetworkFrameCounter:    "NetworkFrameCounter",
}

// APSDesignatedCoordinator is the decoded value of ParamAPSDesignatedCoord.
type APSDesignatedCoordinator byte

const (
	CoordinatorRouter      APSDesignatedCoordinator = 0x00
	CoordinatorCoordinator APSDesignatedCoordinator = 0x01
)

// SecurityMode is the decoded value of ParamSecurityMode.
type SecurityMode byte

const (
	SecurityNone                        SecurityMode = 0x00
	SecurityPreconfiguredNetworkKey     SecurityMode = 0x01
	SecurityNetworkKeyFromTrustCenter   SecurityMode = 0x02
	SecurityNoMasterButTrustCenterLinkKey SecurityMode = 0x03
)

// PredefinedNetworkPANID is the decoded value of ParamPredefinedNetworkPANID.
type PredefinedNetworkPANID byte

const (
	NetworkPANIDNotPredefined PredefinedNetworkPANID = 0x00
	NetworkPANIDPredefined    PredefinedNetworkPANID = 0x01
)

// NetworkKey is the decoded value of ParamNetworkKey: Set is false
// when the stick reports no key material at all, which the vendor
// firmware does by returning an empty value rather than 16 zero bytes.
type NetworkKey struct {
	Set bool
	Key [16]byte
}

// ParameterValue holds the decoded value of any parameter in the
// table, as a tagged union over the widths actually used by the
// catalog (u8, u16, u32, u64, and the variable-width network key).
// Exactly one field is meaningful, selected by ID.
type ParameterValue struct {
	ID ParameterID

	U8  byte
	U16 uint16
	U32 uint32
	U64 uint64
	Key NetworkKey
}

// ReadParameterRequest asks for the current value of a single
// parameter, identified by ID.
type ReadParameterRequest struct {
	ID ParameterID
}

func (ReadParameterRequest) CommandID() CommandID { return CommandReadParameter }

func (r ReadParameterRequest) Payload() ([]byte, bool) {
	return []byte{byte(r.ID)}, true
}

// ReadParameterResponse carries the decoded parameter value.
// ReadParameter replies carry no device-state byte, so its
// ParseResponse always returns a nil DeviceState.
type ReadParameterResponse struct {
	Value ParameterValue
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *ReadParameterResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseReadParameterResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseReadParameterResponse(f Frame) (ReadParameterResponse, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length
	id := ParameterID(r.U8())

	value := ParameterValue{ID: id}
	switch id {
	case ParamMACAddress, ParamAPSExtendedPANID, ParamTrustCenterAddress, ParamNetworkFrameCounter:
		value.U64 = r.U64()
	case ParamNetworkPANID, ParamNetworkAddress, ParamProtocolVersion:
		value.U16 = r.U16()
	case ParamChannelMask:
		value.U32 = r.U32()
	case ParamWatchdogTTL:
		value.U32 = r.U32()
	case ParamAPSDesignatedCoord, ParamSecurityMode, ParamPredefinedNetworkPANID,
		ParamCurrentChannel, ParamNetworkUpdateID:
		value.U8 = r.U8()
	case ParamNetworkKey:
		if r.Remaining() > 0 {
			value.Key = NetworkKey{Set: true}
			copy(value.Key.Key[:], r.Bytes(16))
		} else {
			value.Key = NetworkKey{Set: false}
		}
	default:
		return ReadParameterResponse{}, nil, &ProtocolError{Kind: ErrUnknownCommandID, Value: int(id)}
	}

	if r.Err() != nil {
		return ReadParameterResponse{}, nil, r.Err()
	}
	return ReadParameterResponse{Value: value}, nil, nil
}

// WriteParameterRequest sets the value of a single parameter. The
// caller is responsible for populating the ParameterValue field that
// matches the parameter's declared width; Payload uses the ID to pick
// the right field.
type WriteParameterRequest struct {
	Value ParameterValue
}

func (WriteParameterRequest) CommandID() CommandID { return CommandWriteParameter }

func (r WriteParameterRequest) Payload() ([]byte, bool) {
	body := []byte{byte(r.Value.ID)}
	switch r.Value.ID {
	case ParamMACAddress, ParamAPSExtendedPANID, ParamTrustCenterAddress, ParamNetworkFrameCounter:
		body = appendU64(body, r.Value.U64)
	case ParamNetworkPANID, ParamNetworkAddress, ParamProtocolVersion:
		body = appendU16(body, r.Value.U16)
	case ParamChannelMask, ParamWatchdogTTL:
		body = appendU32(body, r.Value.U32)
	case ParamAPSDesignatedCoord, ParamSecurityMode, ParamPredefinedNetworkPANID,
		ParamCurrentChannel, ParamNetworkUpdateID:
		body = append(body, r.Value.U8)
	case ParamNetworkKey:
		if r.Value.Key.Set {
			body = append(body, r.Value.Key.Key[:]...)
		}
	}
	return body, true
}

// WriteParameterResponse echoes the parameter id written; it carries
// no value.
type WriteParameterResponse struct {
	ID ParameterID
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *WriteParameterResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseWriteParameterResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseWriteParameterResponse(f Frame) (WriteParameterResponse, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length
	id := ParameterID(r.U8())
	if r.Err() != nil {
		return WriteParameterResponse{}, nil, r.Err()
	}
	return WriteParameterResponse{ID: id}, nil, nil
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendU64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
