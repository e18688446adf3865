package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finboard/backend-go/internal/models"
)

// StreamWidgets pushes render-state changes as server-sent events. Every
// known state is sent first so a fresh page renders without polling.
func (a *API) StreamWidgets(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusBadRequest)
		return
	}

	events, unsubscribe := a.refresher.Hub().Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(st models.RenderState) {
		data, _ := json.Marshal(st)
		_, _ = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
		flusher.Flush()
	}

	for _, st := range a.currentStates() {
		send(st)
	}

	ticker := time.NewTicker(a.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-events:
			if !ok {
				return
			}
			send(st)
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (a *API) currentStates() []models.RenderState {
	list := a.store.List()
	out := make([]models.RenderState, 0, len(list))
	for _, wc := range list {
		if st, ok := a.refresher.State(wc.ID); ok {
			out = append(out, st)
		}
	}
	return out
}
