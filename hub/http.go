package hub

import (
	"encoding/json"
	"net/http"

	"pulsehub/transport"
)

// Handler returns the hub's HTTP surface: the websocket endpoint, the
// roster query, a health probe, and the dashboard page.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/api/roster", h.serveRoster)
	mux.HandleFunc("/healthz", h.serveHealth)
	mux.HandleFunc("/", h.serveDashboard)
	return mux
}

// serveWS upgrades a connection and attaches it to the run loop.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrade(w, r)
	if err != nil {
		h.log.Warn("upgrade failed", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}
	h.attach(conn)
}

// upgrade accepts a websocket handshake with the hub's transport config.
func (h *Hub) upgrade(w http.ResponseWriter, r *http.Request) (*transport.Conn, error) {
	return transport.Upgrade(w, r, h.config.Transport)
}

// serveRoster returns the roster computed fresh from a snapshot. Unlike
// the broadcast, this variant includes lastSeen.
func (h *Hub) serveRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.summaries(true))
}

// serveHealth is a liveness probe.
func (h *Hub) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"peers":  h.store.Len(),
	})
}

// serveDashboard serves the static observer page.
func (h *Hub) serveDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}
