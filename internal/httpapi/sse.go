package httpapi

import (
	"encoding/json"
	"net/http"
)

// streamEvents pushes one SSE data frame per engine state change, starting
// with the current snapshot so a reconnecting client resynchronizes
// immediately.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	writeFrame := func(v any) {
		data, _ := json.Marshal(v)
		w.Write([]byte("data: "))
		w.Write(data)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	writeFrame(s.engine.Snapshot())

	events := s.engine.Events()
	for {
		select {
		case snap, ok := <-events:
			if !ok {
				return
			}
			writeFrame(snap)

		case <-r.Context().Done():
			return
		}
	}
}
