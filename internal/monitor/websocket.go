package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

const (
	wsSendBufferSize = 256
	wsPingInterval   = 30 * time.Second
	wsPongTimeout    = 60 * time.Second
)

// telegramMessage is the shape broadcast to every connected client for
// each observed L_Data.ind — a live bus-watching feed, read-only.
type telegramMessage struct {
	Timestamp       string `json:"timestamp"`
	Source          string `json:"source"`
	AddressType     string `json:"address_type"`
	Destination     string `json:"destination"`
	APCI            string `json:"apci"`
	PayloadHexBytes string `json:"payload_hex,omitempty"`
}

// Hub fans out telegram messages to every connected WebSocket client,
// grounded on the teacher's api.Hub broadcast shape, trimmed to a single
// channel (there is only one event stream here, not per-topic routing).
type Hub struct {
	logger  Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(logger Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close() //nolint:errcheck // best-effort on shutdown
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if existed {
		close(c.send)
	}
}

// broadcast sends msg to every connected client's buffer, dropping the
// message for any client whose buffer is full rather than blocking.
func (h *Hub) broadcast(msg telegramMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("monitor: marshalling telegram message failed", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.trySend(data)
	}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) trySend(data []byte) {
	defer func() { recover() }() //nolint:errcheck // absorb send-on-closed-channel panic
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // best-effort on exit
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // best-effort close
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout)) //nolint:errcheck // best-effort deadline
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout)) //nolint:errcheck // best-effort deadline
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains and discards client frames — this stream is outbound
// only — purely to detect disconnects via read errors.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close() //nolint:errcheck // best-effort on exit
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout)) //nolint:errcheck // best-effort deadline
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and registers a client with the
// hub. Auth, when required, is validated against a ?token= query parameter
// before the upgrade — a WebSocket handshake carries no Authorization
// header from a browser.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.wsAuthorized(r) {
		writeUnauthorized(w, "missing or invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("monitor: websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, wsSendBufferSize)}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// linkTap implements knx.NetworkListener, installed via Link.AddTap
// alongside the Network layer's real listener, feeding every observed
// inbound frame to the hub for WebSocket broadcast.
type linkTap struct {
	hub *Hub
}

func (t linkTap) DataInd(f knx.Frame) {
	msg := telegramMessage{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    f.Src.String(),
		APCI:      apciString(f.APCI),
	}

	if f.AddressType == knx.AddressGroup {
		msg.AddressType = "group"
		msg.Destination = knx.GroupAddressFromUint16(f.Dst).String()
	} else {
		msg.AddressType = "individual"
		msg.Destination = knx.IndividualAddressFromUint16(f.Dst).String()
	}

	t.hub.broadcast(msg)
}

func apciString(a knx.APCI) string {
	switch a {
	case knx.APCIGroupValueRead:
		return "GroupValueRead"
	case knx.APCIGroupValueResponse:
		return "GroupValueResponse"
	case knx.APCIGroupValueWrite:
		return "GroupValueWrite"
	default:
		return "unknown"
	}
}
