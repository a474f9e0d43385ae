package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/orchestrator"
	"github.com/seantiz/topoctl/internal/store"
)

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	key := chi.URLParam(r, "key")

	// Subscribe before reading so no status published in between is lost.
	ch, unsub := s.orch.Broker().Subscribe(orchestrator.Topic(family, key))
	defer unsub()

	e, err := s.store.Get(r.Context(), model.Desired, family, key)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	if err != nil {
		s.logger.Error("get entity for events", "family", family, "key", key, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Long-lived stream.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	if e.Status != nil {
		if data, err := json.Marshal(e.Status); err == nil {
			_ = writeSSEData(w, string(data))
		}
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case line, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "entity deleted")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, line); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEData writes data as one SSE event. Multi-line strings get one
// "data:" prefix per line.
func writeSSEData(w http.ResponseWriter, data string) error {
	for seg := range strings.SplitSeq(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
