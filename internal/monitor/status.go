package monitor

import (
	"net/http"
	"time"
)

// queueStatus mirrors knx.QueueStats for JSON encoding with named classes
// instead of an array indexed by Priority.
type queueStatus struct {
	System int `json:"system"`
	Urgent int `json:"urgent"`
	Normal int `json:"normal"`
	Low    int `json:"low"`
}

type dropStatus struct {
	System uint64 `json:"system"`
	Urgent uint64 `json:"urgent"`
	Normal uint64 `json:"normal"`
	Low    uint64 `json:"low"`
}

type statusResponse struct {
	Version        string      `json:"version"`
	Phase          string      `json:"phase"`
	IndividualAddr string      `json:"individual_address"`
	UptimeSeconds  float64     `json:"uptime_seconds"`
	InboundDepth   queueStatus `json:"inbound_queue_depth"`
	OutboundDepth  queueStatus `json:"outbound_queue_depth"`
	InboundDrops   dropStatus  `json:"inbound_queue_drops"`
	OutboundDrops  dropStatus  `json:"outbound_queue_drops"`
}

// handleStatus reports the device state-machine phase, uptime, queue
// depths, and per-class drop counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	in := s.link.InboundStats()
	out := s.link.OutboundStats()

	resp := statusResponse{
		Version:        s.version,
		Phase:          s.dev.Phase().String(),
		IndividualAddr: s.dev.IndividualAddress().String(),
		UptimeSeconds:  time.Since(s.startTime).Seconds(),
		InboundDepth:   queueStatus{System: in.Depth[0], Urgent: in.Depth[1], Normal: in.Depth[2], Low: in.Depth[3]},
		OutboundDepth:  queueStatus{System: out.Depth[0], Urgent: out.Depth[1], Normal: out.Depth[2], Low: out.Depth[3]},
		InboundDrops:   dropStatus{System: in.Drops[0], Urgent: in.Drops[1], Normal: in.Drops[2], Low: in.Drops[3]},
		OutboundDrops:  dropStatus{System: out.Drops[0], Urgent: out.Drops[1], Normal: out.Drops[2], Low: out.Drops[3]},
	}

	writeJSON(w, http.StatusOK, resp)
}
