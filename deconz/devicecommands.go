package deconz

// VersionRequest asks the stick to report its firmware version. The
// body is a mandatory 2-byte reserved field; the stick ignores its
// contents.
type VersionRequest struct{}

func (VersionRequest) CommandID() CommandID { return CommandVersion }

func (VersionRequest) Payload() ([]byte, bool) {
	return []byte{0, 0}, true
}

// FirmwarePlatform identifies the hardware family reporting a version.
type FirmwarePlatform byte

const (
	PlatformAVR    FirmwarePlatform = 0x05 // ConBee and RaspBee
	PlatformARMR21 FirmwarePlatform = 0x07 // ConBee II and RaspBee II
)

func (p FirmwarePlatform) String() string {
	switch p {
	case PlatformAVR:
		return "AVR"
	case PlatformARMR21:
		return "ARM/R21"
	default:
		return "Unknown"
	}
}

// VersionResponse is the decoded reply to a VersionRequest.
type VersionResponse struct {
	Platform     FirmwarePlatform
	MinorVersion byte
	MajorVersion byte
}

func (VersionResponse) CommandID() CommandID { return CommandVersion }

// ParseResponse decodes f into resp, satisfying Response.
func (resp *VersionResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseVersionResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseVersionResponse(f Frame) (VersionResponse, *DeviceState, error) {
	r := f.Reader()
	_ = r.U8() // reserved
	resp := VersionResponse{
		Platform:     FirmwarePlatform(r.U8()),
		MinorVersion: r.U8(),
		MajorVersion: r.U8(),
	}
	if r.Err() != nil {
		return VersionResponse{}, nil, r.Err()
	}
	return resp, nil, nil
}

// DeviceStateRequest asks the stick to report its current DeviceState.
// The body is a mandatory 3-byte reserved field.
type DeviceStateRequest struct{}

func (DeviceStateRequest) CommandID() CommandID { return CommandDeviceState }

func (DeviceStateRequest) Payload() ([]byte, bool) {
	return []byte{0, 0, 0}, true
}

// DeviceStateResponse carries the decoded flag byte of a DeviceState
// read, duplicated as the fold-in state for the scheduler.
type DeviceStateResponse struct {
	State DeviceState
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *DeviceStateResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseDeviceStateResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseDeviceStateResponse(f Frame) (DeviceStateResponse, *DeviceState, error) {
	r := f.Reader()
	state, err := parseDeviceState(r.U8())
	if err != nil {
		return DeviceStateResponse{}, nil, err
	}
	if r.Err() != nil {
		return DeviceStateResponse{}, nil, r.Err()
	}
	return DeviceStateResponse{State: state}, &state, nil
}

// ChangeNetworkStateRequest asks the stick to transition to a new
// NetworkState. Only NetworkOffline and NetworkConnected are
// meaningful requests; the stick itself drives the Joining/Leaving
// transitional states.
type ChangeNetworkStateRequest struct {
	State NetworkState
}

func (ChangeNetworkStateRequest) CommandID() CommandID { return CommandChangeNetworkState }

func (r ChangeNetworkStateRequest) Payload() ([]byte, bool) {
	return []byte{byte(r.State)}, true
}

// ChangeNetworkStateResponse carries no fields; the stick's reply to
// this command has no body beyond its header.
type ChangeNetworkStateResponse struct{}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *ChangeNetworkStateResponse) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseChangeNetworkStateResponse(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseChangeNetworkStateResponse(Frame) (ChangeNetworkStateResponse, *DeviceState, error) {
	return ChangeNetworkStateResponse{}, nil, nil
}

// DeviceStateChanged is the unsolicited notification the stick emits
// whenever its DeviceState flags change without being polled. It
// carries only the new flag byte.
type DeviceStateChanged struct {
	State DeviceState
}

// ParseResponse decodes f into resp, satisfying Response.
func (resp *DeviceStateChanged) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseDeviceStateChanged(f)
	if err != nil {
		return nil, err
	}
	*resp = v
	return ds, nil
}

func parseDeviceStateChanged(f Frame) (DeviceStateChanged, *DeviceState, error) {
	r := f.Reader()
	state, err := parseDeviceState(r.U8())
	if err != nil {
		return DeviceStateChanged{}, nil, err
	}
	if r.Err() != nil {
		return DeviceStateChanged{}, nil, r.Err()
	}
	return DeviceStateChanged{State: state}, &state, nil
}
