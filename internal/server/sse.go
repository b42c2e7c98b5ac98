package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/projection"
)

// handleStream sends the current visualization, then a new one after every
// change, as server-sent events. Slow clients skip intermediate states and
// always receive the latest one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates := make(chan projection.Visualization, 1)
	push := func(vis projection.Visualization) {
		for {
			select {
			case updates <- vis:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	stop := sess.Subscribe(push)
	defer stop()
	push(sess.Visualization())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	var id int
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case vis := <-updates:
			data, err := json.Marshal(vis)
			if err != nil {
				s.log.Error("encode visualization", "error", err)
				return
			}
			id++
			if _, err := fmt.Fprintf(w, "id: %d\nevent: visualization\ndata: %s\n\n", id, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
