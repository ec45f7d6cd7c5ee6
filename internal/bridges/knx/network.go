package knx

import "context"

// defaultHopCount is the hop count assigned to outbound group frames.
const defaultHopCount = 6

// TransportListener receives inbound group-addressed data passed up by the
// Network layer, i.e. the Transport layer above it.
type TransportListener interface {
	GroupDataInd(src IndividualAddress, gad uint16, priority Priority, tsdu []byte)
}

// DataReqSender is the subset of Link the Network layer drives outbound.
type DataReqSender interface {
	DataReq(ctx context.Context, f Frame) (TransmissionResult, error)
}

// Network is the Network data service (N): a thin pass-through for
// group-addressed traffic. Inbound frames are passed up without changing
// or checking their hop count; outbound frames get hop count 6.
type Network struct {
	link     DataReqSender
	listener TransportListener
}

// NewNetwork constructs a Network layer driving the given Link.
func NewNetwork(link DataReqSender) *Network {
	return &Network{link: link}
}

// SetListener registers the upward Transport-layer listener.
func (n *Network) SetListener(listener TransportListener) {
	n.listener = listener
}

// DataInd implements NetworkListener: called by Link for inbound
// indications that passed loop suppression. Group-addressed traffic is
// passed upward; individually-addressed traffic (device management, not
// used by this stack) is dropped here. Hop count is not re-routed any
// further since this stack only ever sits on one KNXnet/IP segment.
func (n *Network) DataInd(f Frame) {
	if f.AddressType != AddressGroup {
		return
	}

	if n.listener != nil {
		n.listener.GroupDataInd(f.Src, f.Dst, f.Priority, tsduFromFrame(f))
	}
}

// tsduFromFrame reassembles the transport-layer SDU (tpci/apci byte0 + the
// apci/data continuation) from a decoded Frame, mirroring the wire layout
// EncodeCEMI/DecodeCEMI use.
func tsduFromFrame(f Frame) []byte {
	byte0, byte1 := encodeAPCI(f.APCI, f.SmallValue)
	out := make([]byte, 0, 2+len(f.Data))
	out = append(out, byte0, byte1)
	out = append(out, f.Data...)
	return out
}

// GroupDataReq constructs a group-addressed cEMI frame (hop count defaulted
// to 6) and sends it through the Link layer.
func (n *Network) GroupDataReq(ctx context.Context, gad uint16, priority Priority, apci APCI, smallValue uint8, data []byte) (TransmissionResult, error) {
	f := Frame{
		Code:        LDataReq,
		Priority:    priority,
		AddressType: AddressGroup,
		HopCount:    defaultHopCount,
		Dst:         gad,
		APCI:        apci,
		SmallValue:  smallValue,
		Data:        data,
	}
	return n.link.DataReq(ctx, f)
}
