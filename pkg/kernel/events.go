package kernel

import (
	"fmt"
	"net/http"

	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/services"
)

// handleRunEvents streams the steps of a run as server-sent events until the
// run is done or the client goes away.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := bindRunID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before writing headers so no early step is missed
	ch, unsub := s.eventBus.Subscribe(domain.RunID(id))
	defer unsub()

	// SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Data)
			flusher.Flush()
			if evt.Type == services.EventTypeDone {
				return
			}
		}
	}
}
