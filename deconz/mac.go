package deconz

// MACBeaconIndication is an unsolicited notification the stick emits
// whenever it overhears an 802.15.4 beacon frame on its current
// channel.
type MACBeaconIndication struct {
	SourceAddress SourceAddress
	NetworkPANID  uint16
	Channel       byte
	Flags         byte
	UpdateID      byte
	// Data holds any additional beacon payload bytes; nil if none were
	// present.
	Data []byte
}

// ParseResponse decodes f into ind, satisfying Response.
func (ind *MACBeaconIndication) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseMACBeaconIndication(f)
	if err != nil {
		return nil, err
	}
	*ind = v
	return ds, nil
}

func parseMACBeaconIndication(f Frame) (MACBeaconIndication, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length

	ind := MACBeaconIndication{
		SourceAddress: SourceAddress{Mode: SourceNetworkAddress, NetworkAddress: r.U16()},
		NetworkPANID:  r.U16(),
		Channel:       r.U8(),
		Flags:         r.U8(),
		UpdateID:      r.U8(),
	}
	if r.Remaining() > 0 {
		ind.Data = r.Rest()
	}

	if r.Err() != nil {
		return MACBeaconIndication{}, nil, r.Err()
	}
	return ind, nil, nil
}

// MACNeighborTableState is optionally attached to a MACPollIndication
// when the stick has neighbor-table entries for the polling device.
type MACNeighborTableState struct {
	LifeTime      uint32
	DeviceTimeout uint32
}

// MACPollIndication is an unsolicited notification the stick emits
// when a sleepy end device polls it for buffered data.
type MACPollIndication struct {
	SourceAddress          SourceAddress
	LinkQuality            byte
	ReceivedSignalStrength int8
	// NeighborTableState is nil when the stick did not attach one.
	NeighborTableState *MACNeighborTableState
}

// ParseResponse decodes f into ind, satisfying Response.
func (ind *MACPollIndication) ParseResponse(f Frame) (*DeviceState, error) {
	v, ds, err := parseMACPollIndication(f)
	if err != nil {
		return nil, err
	}
	*ind = v
	return ds, nil
}

func parseMACPollIndication(f Frame) (MACPollIndication, *DeviceState, error) {
	r := f.Reader()
	_ = r.U16() // echoed payload length

	ind := MACPollIndication{
		SourceAddress: readSourceAddress(r),
	}
	ind.LinkQuality = r.U8()
	ind.ReceivedSignalStrength = r.I8()

	if r.Remaining() > 0 {
		ind.NeighborTableState = &MACNeighborTableState{
			LifeTime:      r.U32(),
			DeviceTimeout: r.U32(),
		}
	}

	if r.Err() != nil {
		return MACPollIndication{}, nil, r.Err()
	}
	return ind, nil, nil
}
