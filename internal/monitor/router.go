package monitor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter wires the monitor's three endpoints behind the shared
// logging/recovery middleware. /status and /groupobjects additionally
// require a bearer JWT when Config.AuthRequired is set; /ws validates its
// token as a query parameter instead, since the WebSocket handshake
// carries no Authorization header.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/status", s.handleStatus)
		r.Get("/groupobjects", s.handleGroupObjects)
	})

	return r
}
