package knx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
)

// Default timeouts and buffer sizes for the multicast transceiver.
const (
	defaultReceiveTimeout = 1 * time.Second

	// routingMaxFrameSize bounds a single KNXnet/IP routing datagram; cEMI
	// frames on the bus are small, so this comfortably covers any payload.
	routingMaxFrameSize = 512

	// inboundQueueSize is the buffer size for the received-frame callback queue.
	inboundQueueSize = 256

	// inboundWorkerCount is the number of concurrent callback workers.
	inboundWorkerCount = 4
)

// TransceiverStats holds operational counters for the multicast link.
type TransceiverStats struct {
	FramesTx     uint64
	FramesRx     uint64
	ErrorsTotal  uint64
	LastActivity time.Time
	Connected    bool
}

// Logger is the structured logging interface the transceiver reports through.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// TransceiverConfig configures the KNXnet/IP multicast transceiver.
type TransceiverConfig struct {
	// MulticastAddr is the routing multicast group, e.g. "224.0.23.12".
	MulticastAddr string

	// MulticastPort is the routing UDP port, conventionally 3671.
	MulticastPort int

	// TTL is the multicast time-to-live for outgoing packets.
	TTL int

	// Loopback controls whether this host receives its own multicast sends.
	Loopback bool

	// ReceiveTimeout bounds each read; on expiry the receive loop checks
	// the running flag and loops. Defaults to 1s if zero.
	ReceiveTimeout time.Duration
}

// Transceiver sends and receives cEMI frames over KNXnet/IP routing, a UDP
// multicast transport (default group 224.0.23.12:3671). It is the lowest
// layer of the stack: it knows nothing about group addresses, priorities,
// or confirmations — only raw cEMI bytes in and out.
//
// Thread safety: all methods are safe for concurrent use. The received-frame
// callback is invoked from a bounded worker pool, not the receive goroutine.
type Transceiver struct {
	cfg TransceiverConfig

	conn    *net.UDPConn
	pconn   *ipv4.PacketConn
	groupAddr *net.UDPAddr

	connMu    sync.RWMutex
	connected bool

	onFrame    func([]byte)
	callbackMu sync.RWMutex

	inbound chan []byte

	done chan struct{}
	wg   sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	framesTx     atomic.Uint64
	framesRx     atomic.Uint64
	errorsTotal  atomic.Uint64
	lastActivity atomic.Int64
}

// NewTransceiver joins the KNXnet/IP routing multicast group and starts the
// receive loop. The returned Transceiver is ready for Send immediately.
func NewTransceiver(cfg TransceiverConfig) (*Transceiver, error) {
	if cfg.ReceiveTimeout == 0 {
		cfg.ReceiveTimeout = defaultReceiveTimeout
	}
	if cfg.TTL == 0 {
		cfg.TTL = 32
	}

	groupAddr := &net.UDPAddr{
		IP:   net.ParseIP(cfg.MulticastAddr),
		Port: cfg.MulticastPort,
	}
	if groupAddr.IP == nil {
		return nil, fmt.Errorf("%w: invalid multicast address %q", ErrConnectionFailed, cfg.MulticastAddr)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.MulticastPort})
	if err != nil {
		return nil, fmt.Errorf("%w: listen: %w", ErrConnectionFailed, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(nil, groupAddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: join group: %w", ErrConnectionFailed, err)
	}
	if err := pconn.SetMulticastTTL(cfg.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set ttl: %w", ErrConnectionFailed, err)
	}
	if err := pconn.SetMulticastLoopback(cfg.Loopback); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set loopback: %w", ErrConnectionFailed, err)
	}

	tr := &Transceiver{
		cfg:       cfg,
		conn:      conn,
		pconn:     pconn,
		groupAddr: groupAddr,
		inbound:   make(chan []byte, inboundQueueSize),
		done:      make(chan struct{}),
		connected: true,
	}
	tr.lastActivity.Store(time.Now().Unix())

	for range inboundWorkerCount {
		tr.wg.Add(1)
		go tr.callbackWorker()
	}

	tr.wg.Add(1)
	go tr.receiveLoop()

	return tr, nil
}

// receiveLoop reads KNXnet/IP routing datagrams, unwraps them to cEMI
// frames, and queues each for the callback worker pool.
func (t *Transceiver) receiveLoop() {
	defer t.wg.Done()

	buf := make([]byte, routingMaxFrameSize)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		if err := t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReceiveTimeout)); err != nil {
			t.logError("set read deadline failed", err)
			continue
		}

		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if t.handleReadError(err) {
				return
			}
			continue
		}

		cemi, err := DecodeRoutingFrame(buf[:n])
		if err != nil {
			t.logError("decode routing frame failed", err)
			t.errorsTotal.Add(1)
			continue
		}

		t.framesRx.Add(1)
		t.lastActivity.Store(time.Now().Unix())

		frame := make([]byte, len(cemi))
		copy(frame, cemi)

		select {
		case t.inbound <- frame:
		default:
			t.logError("inbound queue full, dropping frame", nil)
			t.errorsTotal.Add(1)
		}
	}
}

// handleReadError classifies a read error; returns true if the receive
// loop should stop.
func (t *Transceiver) handleReadError(err error) bool {
	if t.isClosed() {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	t.logError("read failed", err)
	t.errorsTotal.Add(1)
	t.handleDisconnect()
	return true
}

// callbackWorker drains the inbound queue and invokes the registered
// callback, recovering from any panic it raises.
func (t *Transceiver) callbackWorker() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case frame := <-t.inbound:
			t.callbackMu.RLock()
			callback := t.onFrame
			t.callbackMu.RUnlock()

			if callback != nil {
				t.invokeCallback(callback, frame)
			}
		}
	}
}

func (t *Transceiver) invokeCallback(callback func([]byte), frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logError("frame callback panic", fmt.Errorf("%v", r))
		}
	}()
	callback(frame)
}

func (t *Transceiver) handleDisconnect() {
	t.connMu.Lock()
	t.connected = false
	t.connMu.Unlock()
	t.logInfo("multicast link lost")
}

func (t *Transceiver) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Send encodes a cEMI frame as a KNXnet/IP routing datagram and writes it
// to the multicast group.
func (t *Transceiver) Send(ctx context.Context, cemi []byte) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTelegramFailed, ctx.Err())
	default:
	}

	datagram, err := EncodeRoutingFrame(cemi)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}

	if _, err := t.conn.WriteToUDP(datagram, t.groupAddr); err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("%w: write: %w", ErrTelegramFailed, err)
	}

	t.framesTx.Add(1)
	t.lastActivity.Store(time.Now().Unix())
	return nil
}

// SetOnFrame registers the callback invoked for each received cEMI frame.
func (t *Transceiver) SetOnFrame(callback func([]byte)) {
	t.callbackMu.Lock()
	t.onFrame = callback
	t.callbackMu.Unlock()
}

// SetLogger sets the logger used for transceiver diagnostics.
func (t *Transceiver) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// IsConnected reports whether the multicast socket is still open.
func (t *Transceiver) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected
}

// Stats returns current operational counters.
func (t *Transceiver) Stats() TransceiverStats {
	return TransceiverStats{
		FramesTx:     t.framesTx.Load(),
		FramesRx:     t.framesRx.Load(),
		ErrorsTotal:  t.errorsTotal.Load(),
		LastActivity: time.Unix(t.lastActivity.Load(), 0),
		Connected:    t.IsConnected(),
	}
}

// HealthCheck verifies the multicast socket is still open.
func (t *Transceiver) HealthCheck(_ context.Context) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close leaves the multicast group and shuts down the receive loop and
// callback workers, waiting for them to finish.
func (t *Transceiver) Close() error {
	select {
	case <-t.done:
		return nil
	default:
		close(t.done)
	}

	t.connMu.Lock()
	t.connected = false
	t.connMu.Unlock()

	if t.pconn != nil {
		t.pconn.LeaveGroup(nil, t.groupAddr)
	}
	if t.conn != nil {
		t.conn.Close()
	}

	t.wg.Wait()
	t.logInfo("multicast link closed")
	return nil
}

func (t *Transceiver) logInfo(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (t *Transceiver) logError(msg string, err error) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
