package knx

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Frameer is the subset of Transceiver the Link layer drives: raw cEMI
// bytes in and out. Abstracted for testability.
type Frameer interface {
	Send(ctx context.Context, cemi []byte) error
	SetOnFrame(callback func([]byte))
}

// NetworkListener receives inbound cEMI frames that passed loop suppression,
// i.e. the Network layer sitting above Link.
type NetworkListener interface {
	DataInd(f Frame)
}

// Link is the Link data service (L): it owns the individual address, the
// inbound and outbound priority queues, and the loop-suppression worker
// that delivers indications upward.
type Link struct {
	individualAddress IndividualAddress
	transceiver       Frameer

	inbound  *PriorityQueue
	outbound *PriorityQueue

	confirmTimeout time.Duration

	pendingMu sync.Mutex
	pending   map[uint32]chan TransmissionResult
	nextTag   uint32

	listener   NetworkListener
	listenerMu sync.RWMutex

	taps   []NetworkListener
	tapsMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

// LinkConfig configures a Link instance.
type LinkConfig struct {
	IndividualAddress IndividualAddress
	Distribution      [4]int
	HighWaterMark     int
	ConfirmTimeout    time.Duration
}

// NewLink constructs a Link bound to the given transceiver and starts its
// inbound worker and outbound transmit loop.
func NewLink(transceiver Frameer, cfg LinkConfig) *Link {
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 3 * time.Second
	}

	l := &Link{
		individualAddress: cfg.IndividualAddress,
		transceiver:        transceiver,
		inbound:            NewPriorityQueue(cfg.Distribution, cfg.HighWaterMark),
		outbound:           NewPriorityQueue(cfg.Distribution, cfg.HighWaterMark),
		confirmTimeout:     cfg.ConfirmTimeout,
		pending:            make(map[uint32]chan TransmissionResult),
		done:               make(chan struct{}),
	}

	transceiver.SetOnFrame(l.putInFrame)

	l.wg.Add(2)
	go l.inboundWorker()
	go l.outboundWorker()

	return l
}

// SetListener registers the upward Network-layer listener.
func (l *Link) SetListener(listener NetworkListener) {
	l.listenerMu.Lock()
	l.listener = listener
	l.listenerMu.Unlock()
}

// AddTap registers an additional passive listener that observes every
// inbound L_Data.ind alongside the Network layer — for the discovery
// recorder and the monitor API's telegram stream. A tap never gates or
// replaces the Network listener's delivery, and any number of taps may be
// registered.
func (l *Link) AddTap(tap NetworkListener) {
	l.tapsMu.Lock()
	l.taps = append(l.taps, tap)
	l.tapsMu.Unlock()
}

// putInFrame decodes a raw cEMI payload and pushes it onto the inbound
// priority queue keyed by its priority. Malformed frames are dropped.
func (l *Link) putInFrame(raw []byte) {
	f, err := DecodeCEMI(raw)
	if err != nil {
		return
	}
	l.inbound.Push(Transmission{Frame: f})
}

// inboundWorker drains the inbound queue, discards loopback of our own
// sends, and hands L_Data.ind frames to the Network layer.
func (l *Link) inboundWorker() {
	defer l.wg.Done()

	for {
		t, ok := l.inbound.Pop()
		if !ok {
			return
		}

		// L_Data.con always carries our own address as src (it confirms our
		// own send), so it must be matched before loop suppression, which
		// otherwise exists to drop our own L_Data.ind echoes.
		if t.Frame.Code == LDataCon {
			l.resolveConfirmation(t.Frame, ResultOK)
			continue
		}

		if t.Frame.Src == l.individualAddress {
			continue
		}

		if t.Frame.Code != LDataInd {
			continue
		}

		l.listenerMu.RLock()
		listener := l.listener
		l.listenerMu.RUnlock()

		if listener != nil {
			listener.DataInd(t.Frame)
		}

		l.tapsMu.RLock()
		taps := l.taps
		l.tapsMu.RUnlock()

		for _, tap := range taps {
			tap.DataInd(t.Frame)
		}
	}
}

// outboundWorker drains the outbound queue and hands each frame to the
// transceiver for transmission.
func (l *Link) outboundWorker() {
	defer l.wg.Done()

	for {
		t, ok := l.outbound.Pop()
		if !ok {
			return
		}

		encoded, err := EncodeCEMI(t.Frame)
		if err != nil {
			l.resolveConfirmation(t.Frame, ResultTimeout)
			continue
		}

		err = l.transceiver.Send(context.Background(), encoded)
		if err != nil {
			l.resolveConfirmation(t.Frame, ResultTimeout)
			continue
		}

		// The send itself is treated as confirmation: release the latch
		// immediately. A subsequent matching L_Data.con (if one arrives)
		// resolves the same tag idempotently through resolveConfirmation.
		l.resolveConfirmation(t.Frame, ResultOK)
	}
}

// resolveConfirmation matches an outbound frame against its confirm tag
// (dst+APCI+small value, since cEMI carries no sequence number for unconfirmed
// group traffic) and releases the first waiter found, if any. Safe to
// call more than once for the same logical transmission.
func (l *Link) resolveConfirmation(f Frame, result TransmissionResult) {
	tag := confirmTag(f)

	l.pendingMu.Lock()
	ch, found := l.pending[tag]
	if found {
		delete(l.pending, tag)
	}
	l.pendingMu.Unlock()

	if found {
		select {
		case ch <- result:
		default:
		}
	}
}

// confirmTag derives a matching key for Transmission confirmation from a
// frame's destination, APCI and small value; cEMI carries no explicit
// sequence number for unconfirmed group traffic, so this triple stands in
// for one.
func confirmTag(f Frame) uint32 {
	return uint32(f.Dst)<<16 | uint32(f.APCI)<<8 | uint32(f.SmallValue)
}

// DataReq sets the frame's source to this Link's individual address, wraps
// it in a Transmission, pushes it to the outbound queue, and blocks until
// confirmation or the configured timeout.
func (l *Link) DataReq(ctx context.Context, f Frame) (TransmissionResult, error) {
	f.Src = l.individualAddress

	result := make(chan TransmissionResult, 1)
	tag := confirmTag(f)

	l.pendingMu.Lock()
	l.pending[tag] = result
	l.pendingMu.Unlock()

	l.outbound.Push(Transmission{Frame: f, Result: result})

	timer := time.NewTimer(l.confirmTimeout)
	defer timer.Stop()

	select {
	case r := <-result:
		l.pendingMu.Lock()
		delete(l.pending, tag)
		l.pendingMu.Unlock()
		if r != ResultOK {
			return r, fmt.Errorf("%w: send failed for dst %04X", ErrTelegramFailed, f.Dst)
		}
		return r, nil
	case <-timer.C:
		l.pendingMu.Lock()
		delete(l.pending, tag)
		l.pendingMu.Unlock()
		return ResultTimeout, fmt.Errorf("%w: no confirmation for dst %04X", ErrTimeout, f.Dst)
	case <-ctx.Done():
		l.pendingMu.Lock()
		delete(l.pending, tag)
		l.pendingMu.Unlock()
		return ResultTimeout, ctx.Err()
	}
}

// InboundStats returns depth and drop counters for the inbound priority
// queue, for the monitor API's /status endpoint.
func (l *Link) InboundStats() QueueStats { return l.inbound.Stats() }

// OutboundStats returns depth and drop counters for the outbound priority
// queue, for the monitor API's /status endpoint.
func (l *Link) OutboundStats() QueueStats { return l.outbound.Stats() }

// Close stops the inbound and outbound workers and waits for them to exit.
func (l *Link) Close() {
	l.inbound.Close()
	l.outbound.Close()
	l.wg.Wait()
}
