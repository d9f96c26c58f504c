package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/store"
)

const heartbeatInterval = 30 * time.Second

// SSEHandler streams the same frames as the websocket hub over server-sent
// events, for clients that cannot hold a websocket.
type SSEHandler struct {
	cache  *store.Cache
	logger *zap.SugaredLogger
}

func NewSSEHandler(cache *store.Cache, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{
		cache:  cache,
		logger: logger,
	}
}

func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topics := parseTopics(r)
	if len(topics) == 0 {
		http.Error(w, "no valid topics", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.cache.Subscribe(ctx, store.TopicEvents, store.TopicPoolStats)
	defer sub.Close()

	h.logger.Debugw("SSE connection established", "topics", topics)
	h.sendEvent(w, flusher, "connected", "0", nil)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", "ping", map[string]int64{
				"timestamp": time.Now().Unix(),
			})

		case msg, ok := <-ch:
			if !ok {
				return
			}
			routed, kind := route(msg.Channel, msg.Payload)
			for _, topic := range routed {
				if topics[topic] {
					h.sendEvent(w, flusher, kind, topic, json.RawMessage(msg.Payload))
				}
			}
		}
	}
}

func parseTopics(r *http.Request) map[string]bool {
	topics := make(map[string]bool)
	param := r.URL.Query().Get("topics")
	if param == "" {
		param = store.TopicEvents
	}
	for _, topic := range strings.Split(param, ",") {
		topic = strings.TrimSpace(topic)
		if validTopic(topic) {
			topics[topic] = true
		}
	}
	return topics
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType, id string, data interface{}) {
	payload := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
		payload = b
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "id: %s\n", id)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
