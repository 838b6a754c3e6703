package deconz

// DeviceState is decoded from a single flag byte advertised by the
// stick, either read explicitly or piggybacked on most response
// bodies. Every observation of one of these, regardless of how it
// arrived, replaces the scheduler's last-known state and re-derives
// the APS submission flow-control signal (see apsDataRequestStatus).
type DeviceState struct {
	NetworkState NetworkState

	// ApsDataConfirmPending indicates a previously submitted APS
	// request has a confirm ready to be read (bit 0x04).
	ApsDataConfirmPending bool

	// ApsDataIndicationPending indicates an inbound APS packet is
	// buffered and ready to be read (bit 0x08).
	ApsDataIndicationPending bool

	// ConfigurationChanged is set when stick-side configuration
	// parameters changed out of band (bit 0x10).
	ConfigurationChanged bool

	// ApsDataRequestFreeSlots reports whether the stick currently has
	// room to accept another APS data submission (bit 0x20). It does
	// not indicate how many slots are free.
	ApsDataRequestFreeSlots bool
}

func parseDeviceState(flags byte) (DeviceState, error) {
	networkState, err := parseNetworkState(flags)
	if err != nil {
		return DeviceState{}, err
	}
	has := func(bit byte) bool { return flags&bit == bit }
	return DeviceState{
		NetworkState:             networkState,
		ApsDataConfirmPending:    has(0x04),
		ApsDataIndicationPending: has(0x08),
		ConfigurationChanged:     has(0x10),
		ApsDataRequestFreeSlots:  has(0x20),
	}, nil
}

func (d DeviceState) connected() bool {
	return d.NetworkState == NetworkConnected
}
