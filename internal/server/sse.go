// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter emits server-sent events over one long-lived response. It is
// used from a single goroutine per run; the orchestrator delivers all
// progress events on the handler goroutine.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	// terminal flips once a result or error event is written; every
	// subsequent write is dropped so the terminal event stays last.
	terminal bool
}

// newSSEWriter prepares w for event streaming and writes the headers.
// It returns an error when the ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// event writes one `event: <type>\ndata: <json>\n\n` frame and flushes.
func (s *sseWriter) event(eventType string, payload any) error {
	if s.terminal {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// terminalEvent writes one final event and seals the stream.
func (s *sseWriter) terminalEvent(eventType string, payload any) error {
	err := s.event(eventType, payload)
	s.terminal = true
	return err
}
