package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zrouga/CoAI-app/internal/progress"
)

const keepaliveInterval = 30 * time.Second

// streamEvents serves GET /v1/stream/{keyword} as a server-sent event feed.
// Late joiners receive a state_sync replay first; the stream ends after a
// terminal event or when the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	keyword := keywordParam(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	subID, events := s.broker.Subscribe(keyword)
	defer s.broker.Unsubscribe(keyword, subID)

	s.logger.Debug("stream opened",
		zap.String("keyword", keyword),
		zap.String("subscriber", subID),
	)

	ack := progress.Event{
		Type:      progress.TypeConnected,
		Keyword:   keyword,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"message": "Connected to pipeline stream"},
	}
	if err := writeSSE(w, ack); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("stream client disconnected", zap.String("keyword", keyword))
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				// Evicted by the broker; the client should reconnect.
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Type.Terminal() {
				s.logger.Debug("stream finished",
					zap.String("keyword", keyword),
					zap.String("event", string(ev.Type)),
				)
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev progress.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
