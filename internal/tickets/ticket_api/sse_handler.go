package ticket_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/notify"
	"onfa-ticketing/internal/sse"
)

// SSEHandler streams check-ins to door dashboards.
type SSEHandler struct {
	Logger    *logger.Logger
	Emitter   *sse.CheckInEmitter
	Channel   string
	KeepAlive time.Duration
}

func (h *SSEHandler) HandleCheckIns(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)
	ctx := r.Context()
	events := h.Emitter.Subscribe(ctx, h.Channel)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"channel\":%q}\n\n", h.Channel)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client %s connected to %s", r.RemoteAddr, h.Channel))

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize check-in event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notify.CheckInEventName, data)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client %s disconnected from %s", r.RemoteAddr, h.Channel))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
