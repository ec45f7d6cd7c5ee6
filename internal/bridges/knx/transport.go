package knx

import "context"

// ApplicationListener receives inbound application protocol data units,
// i.e. the Application layer above Transport.
type ApplicationListener interface {
	ApduInd(src IndividualAddress, gad uint16, priority Priority, apdu []byte)
}

// GroupDataSender is the subset of Network the Transport layer drives
// outbound.
type GroupDataSender interface {
	GroupDataReq(ctx context.Context, gad uint16, priority Priority, apci APCI, smallValue uint8, data []byte) (TransmissionResult, error)
}

// Transport is the Transport data service (T). For group communication
// TPCI is always the unnumbered-data form (high two bits 00, rest zero),
// a constraint already baked into the cEMI codec's encodeAPCI/decodeAPCI,
// so Transport forwards TSDUs to the Application layer unchanged and
// forwards APDUs to Network unchanged outbound.
type Transport struct {
	network  GroupDataSender
	listener ApplicationListener
}

// NewTransport constructs a Transport layer driving the given Network.
func NewTransport(network GroupDataSender) *Transport {
	return &Transport{network: network}
}

// SetListener registers the upward Application-layer listener.
func (tr *Transport) SetListener(listener ApplicationListener) {
	tr.listener = listener
}

// GroupDataInd implements TransportListener: called by Network for inbound
// group data.
func (tr *Transport) GroupDataInd(src IndividualAddress, gad uint16, priority Priority, tsdu []byte) {
	if tr.listener != nil {
		tr.listener.ApduInd(src, gad, priority, tsdu)
	}
}

// GroupDataReq forwards an outbound APDU (apci/smallValue/data) to the
// Network layer unchanged.
func (tr *Transport) GroupDataReq(ctx context.Context, gad uint16, priority Priority, apci APCI, smallValue uint8, data []byte) (TransmissionResult, error) {
	return tr.network.GroupDataReq(ctx, gad, priority, apci, smallValue, data)
}
