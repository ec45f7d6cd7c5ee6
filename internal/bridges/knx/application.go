package knx

import (
	"context"
	"fmt"
)

// apduHeaderLen is the number of bytes at the front of every APDU carrying
// the packed TPCI/APCI bits (see encodeAPCI/decodeAPCI).
const apduHeaderLen = 2

// BindingListener receives decoded group-value indications, i.e. the
// group-object/datapoint binding layer sitting above Application.
type BindingListener interface {
	GroupValueWriteInd(src IndividualAddress, gad uint16, priority Priority, data []byte)
	GroupValueReadInd(src IndividualAddress, gad uint16, priority Priority)
	GroupValueResponseInd(src IndividualAddress, gad uint16, priority Priority, data []byte)
}

// Application is the Application data service (A). It owns the APCI codec:
// GroupValue_Read (0x000), GroupValue_Response (0x040), GroupValue_Write
// (0x080), with payloads of 6 bits or fewer packed into the APCI byte
// itself and larger payloads following as additional octets.
type Application struct {
	transport GroupDataSender
	listener  BindingListener
}

// NewApplication constructs an Application layer driving the given
// Transport (accessed through its GroupDataSender interface).
func NewApplication(transport GroupDataSender) *Application {
	return &Application{transport: transport}
}

// SetListener registers the upward binding-layer listener.
func (a *Application) SetListener(listener BindingListener) {
	a.listener = listener
}

// ApduInd implements ApplicationListener: called by Transport for inbound
// application data units. It decodes the APCI and raises the matching
// indication upward.
func (a *Application) ApduInd(src IndividualAddress, gad uint16, priority Priority, apdu []byte) {
	if len(apdu) < apduHeaderLen {
		return
	}

	apci, smallValue := decodeAPCI(apdu[0], apdu[1])
	data := extendedData(smallValue, apdu[apduHeaderLen:])

	if a.listener == nil {
		return
	}

	switch apci {
	case APCIGroupValueRead:
		a.listener.GroupValueReadInd(src, gad, priority)
	case APCIGroupValueWrite:
		a.listener.GroupValueWriteInd(src, gad, priority, data)
	case APCIGroupValueResponse:
		a.listener.GroupValueResponseInd(src, gad, priority, data)
	}
}

// extendedData returns the APDU's data payload: the extra octets if any
// were sent, otherwise the packed small value as a single byte.
func extendedData(smallValue uint8, extra []byte) []byte {
	if len(extra) > 0 {
		return extra
	}
	return []byte{smallValue}
}

// GroupValueWriteReq sends a GroupValue_Write with the given DPT-encoded
// payload on the given group address and priority.
func (a *Application) GroupValueWriteReq(ctx context.Context, gad uint16, priority Priority, data []byte) (TransmissionResult, error) {
	return a.groupValueReq(ctx, gad, priority, APCIGroupValueWrite, data)
}

// GroupValueReadReq sends a GroupValue_Read on the given group address and
// priority, with no payload.
func (a *Application) GroupValueReadReq(ctx context.Context, gad uint16, priority Priority) (TransmissionResult, error) {
	return a.groupValueReq(ctx, gad, priority, APCIGroupValueRead, nil)
}

// GroupValueResponseReq sends a GroupValue_Response with the given
// DPT-encoded payload on the given group address and priority.
func (a *Application) GroupValueResponseReq(ctx context.Context, gad uint16, priority Priority, data []byte) (TransmissionResult, error) {
	return a.groupValueReq(ctx, gad, priority, APCIGroupValueResponse, data)
}

func (a *Application) groupValueReq(ctx context.Context, gad uint16, priority Priority, apci APCI, data []byte) (TransmissionResult, error) {
	smallValue, extra, err := packPayload(data)
	if err != nil {
		return ResultTimeout, fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}
	return a.transport.GroupDataReq(ctx, gad, priority, apci, smallValue, extra)
}

// packPayload decides whether data fits in the APCI byte's 6-bit small
// value (0-63) or must follow as extended octets.
func packPayload(data []byte) (smallValue uint8, extra []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if len(data) == 1 && data[0] <= apciSmallValueMask {
		return data[0], nil, nil
	}
	return 0, data, nil
}
