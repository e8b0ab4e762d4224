package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"jobboard-engine/internal/events"
)

type EventsHandler struct {
	Hub *events.Hub
}

// ServeSSE streams lifecycle events. `?types=job_opened,job_closed`
// narrows the stream; without it every event type is delivered.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}

	wanted := map[string]struct{}{}
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				wanted[t] = struct{}{}
			}
		}
	}

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	// Ping as a proper event envelope
	reqID := RequestIDFrom(r.Context())
	ping := events.MakeEvent(reqID, "ping", 1, nil)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", ping)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if len(wanted) > 0 && !eventTypeIn(msg, wanted) {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func eventTypeIn(msg string, wanted map[string]struct{}) bool {
	var e events.Event
	if err := json.Unmarshal([]byte(msg), &e); err != nil {
		return true // malformed envelopes pass through rather than vanish
	}
	_, ok := wanted[e.Type]
	return ok
}
