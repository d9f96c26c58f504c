package ws

import (
	"encoding/json"
	"strings"

	"github.com/bioneo/stakeledger/internal/store"
)

// Message is the frame pushed to websocket clients.
type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ProgramTopic is the topic carrying the events of one program.
func ProgramTopic(program string) string {
	return store.TopicEvents + "." + program
}

// route returns the client topics a pub/sub message is delivered to and the
// frame type it is sent as.
func route(channel, payload string) (topics []string, kind string) {
	switch channel {
	case store.TopicEvents:
		topics = []string{store.TopicEvents}
		var head struct {
			Program string `json:"program"`
		}
		if err := json.Unmarshal([]byte(payload), &head); err == nil && head.Program != "" {
			topics = append(topics, ProgramTopic(head.Program))
		}
		return topics, "event"
	case store.TopicPoolStats:
		return []string{store.TopicPoolStats}, "pool_stats"
	}
	return nil, ""
}

// validTopic accepts the topics clients may subscribe to.
func validTopic(topic string) bool {
	switch {
	case topic == store.TopicEvents, topic == store.TopicPoolStats:
		return true
	case strings.HasPrefix(topic, store.TopicEvents+"."):
		return len(topic) > len(store.TopicEvents)+1
	}
	return false
}

func originAllowed(origin string, allowed []string) bool {
	// same-origin requests carry no Origin header
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
