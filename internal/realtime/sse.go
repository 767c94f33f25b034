package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"textile-store/internal/domain"
)

// Stream is an open Server-Sent Events response.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStream sets the event-stream headers. It returns nil when w cannot
// flush, after answering with 500.
func NewStream(w http.ResponseWriter) *Stream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, flusher: flusher}
}

// Send writes one named event with a JSON payload.
func (s *Stream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Comment writes a keepalive comment line.
func (s *Stream) Comment(msg string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", msg); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Pipe relays changes to the stream until ctx ends or the channel closes,
// sending a heartbeat comment whenever the stream has been idle.
func (s *Stream) Pipe(ctx context.Context, changes <-chan domain.Change, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.Send(string(change.Event), change); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.Comment("ping"); err != nil {
				return err
			}
		}
	}
}
