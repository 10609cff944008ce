package live

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StreamOptions tunes the per-connection writers.
type StreamOptions struct {
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	return o
}

// SSEHandler streams hub events as text/event-stream.
type SSEHandler struct {
	hub    *Hub
	opts   StreamOptions
	logger *zap.Logger
}

// NewSSEHandler builds the server-sent events endpoint.
func NewSSEHandler(hub *Hub, opts StreamOptions, logger *zap.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, opts: opts.withDefaults(), logger: logger.Named("sse")}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := h.hub.Subscribe("sse")
	if err != nil {
		http.Error(w, "live channel unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	send := func(chunk string) error {
		if err := rc.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		if _, err := fmt.Fprint(w, chunk); err != nil {
			return err
		}
		return rc.Flush()
	}

	// A bare blank line tells the client the stream is open before any event.
	if err := send("\n"); err != nil {
		h.logger.Debug("sse probe failed", zap.String("subscriber_id", sub.ID()), zap.Error(err))
		return
	}
	h.logger.Info("sse client connected", zap.String("subscriber_id", sub.ID()), zap.String("remote", r.RemoteAddr))

	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("sse client disconnected", zap.String("subscriber_id", sub.ID()))
			return
		case <-sub.Done():
			return
		case frame := <-sub.Frames():
			if err := send(encodeSSE(frame)); err != nil {
				h.logger.Warn("sse write failed", zap.String("subscriber_id", sub.ID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := send(": keep-alive\n\n"); err != nil {
				return
			}
		}
	}
}

func encodeSSE(f Frame) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", f.Event, f.Data)
}
