package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Monitor stream duration bounds, in seconds.
const (
	minStreamDuration     = 10
	maxStreamDuration     = 300
	defaultStreamDuration = 60
)

// handleMonitor streams live snapshots as server-sent events for a bounded
// duration. Each snapshot re-samples the system without persisting
// anything; the stream ends at the deadline or as soon as the client
// disconnects.
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	duration, err := intParam(r, "duration", defaultStreamDuration, minStreamDuration, maxStreamDuration)
	if err != nil {
		fail(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "streaming unsupported",
		})
		return
	}

	interval := s.cfg.Monitor.StreamInterval.Duration
	if interval <= 0 {
		interval = 5 * time.Second
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()

	send := func() bool {
		snap := s.agent.Snapshot(ctx)
		payload, err := json.Marshal(snap)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the write error is the only signal we need.
			return false
		}
		flusher.Flush()
		return true
	}

	deadline := time.NewTimer(time.Duration(duration) * time.Second)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if !send() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			fmt.Fprint(w, "event: end\ndata: {\"status\":\"complete\"}\n\n")
			flusher.Flush()
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
