package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// StatusHandler serves the latest tick snapshot as JSON.
type StatusHandler struct {
	broadcaster *Broadcaster
	peers       func() int
}

// NewStatusHandler creates a status handler. peers reports connected ingest
// peers and may be nil.
func NewStatusHandler(b *Broadcaster, peers func() int) *StatusHandler {
	return &StatusHandler{broadcaster: b, peers: peers}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	peers := 0
	if h.peers != nil {
		peers = h.peers()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(map[string]any{
		"snapshot":       h.broadcaster.Latest(),
		"tick_listeners": h.broadcaster.ListenerCount(),
		"ingest_peers":   peers,
	})
}

// TicksHandler streams tick snapshots as server-sent events.
type TicksHandler struct {
	broadcaster *Broadcaster
}

// NewTicksHandler creates a server-sent events handler.
func NewTicksHandler(b *Broadcaster) *TicksHandler {
	return &TicksHandler{broadcaster: b}
}

func (h *TicksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	logger := log.WithFields(log.Fields{"component": "stream", "remote": r.RemoteAddr})
	logger.WithField("total", h.broadcaster.ListenerCount()).Debug("Tick listener connected")
	defer logger.Debug("Tick listener disconnected")

	for {
		select {
		case <-r.Context().Done():
			return
		case <-listener.done:
			return
		case snap := <-listener.C:
			data, err := json.Marshal(snap)
			if err != nil {
				logger.WithError(err).Warn("Encode snapshot")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", snap.Tick, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
