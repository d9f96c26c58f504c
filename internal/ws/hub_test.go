package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bioneo/stakeledger/internal/store"
	"github.com/bioneo/stakeledger/pkg/kv"
)

func newTestHub(t *testing.T) (*Hub, *store.Cache, *httptest.Server) {
	t.Helper()
	cache, err := store.NewCache(store.Config{Backend: kv.BackendMemory}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	hub := NewHub(cache, []string{"http://localhost:5173"}, zap.NewNop().Sugar(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	<-hub.Ready()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return hub, cache, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		payload string
		topics  []string
		kind    string
	}{
		{"event with program", store.TopicEvents, `{"program":"lp-staking"}`, []string{"ledger.events", "ledger.events.lp-staking"}, "event"},
		{"event without program", store.TopicEvents, `{"op":"stake"}`, []string{"ledger.events"}, "event"},
		{"malformed event", store.TopicEvents, `not json`, []string{"ledger.events"}, "event"},
		{"pool stats", store.TopicPoolStats, `{}`, []string{"pools.stats"}, "pool_stats"},
		{"unknown channel", "other", `{}`, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics, kind := route(tt.channel, tt.payload)
			assert.Equal(t, tt.topics, topics)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestValidTopic(t *testing.T) {
	assert.True(t, validTopic("ledger.events"))
	assert.True(t, validTopic("ledger.events.ido"))
	assert.True(t, validTopic("pools.stats"))
	assert.False(t, validTopic("ledger.events."))
	assert.False(t, validTopic("fx:protocol:state"))
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://app.example"}
	assert.True(t, originAllowed("", allowed))
	assert.True(t, originAllowed("https://app.example", allowed))
	assert.False(t, originAllowed("https://evil.example", allowed))
	assert.True(t, originAllowed("https://any.example", []string{"*"}))
}

func TestHubRelaysProgramEvents(t *testing.T) {
	hub, cache, srv := newTestHub(t)
	conn := dial(t, srv, "")

	req, err := json.Marshal(SubscriptionRequest{Type: "subscribe", Topics: []string{ProgramTopic("nft-staking")}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))
	require.Eventually(t, func() bool {
		return hub.subscribers(ProgramTopic("nft-staking")) == 1
	}, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, cache.Publish(ctx, store.TopicEvents, map[string]string{"program": "lp-staking", "op": "stake"}))
	require.NoError(t, cache.Publish(ctx, store.TopicEvents, map[string]string{"program": "nft-staking", "op": "claim"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "ledger.events.nft-staking", msg.Topic)
	assert.JSONEq(t, `{"program":"nft-staking","op":"claim"}`, string(msg.Data))
}

func TestHubQueryTopicsAndUnsubscribe(t *testing.T) {
	hub, _, srv := newTestHub(t)
	conn := dial(t, srv, "?topic=pools.stats&topic=bogus")

	require.Eventually(t, func() bool {
		return hub.subscribers(store.TopicPoolStats) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.subscribers("bogus"))

	req, err := json.Marshal(SubscriptionRequest{Type: "unsubscribe", Topics: []string{store.TopicPoolStats}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))
	assert.Eventually(t, func() bool {
		return hub.subscribers(store.TopicPoolStats) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, _, srv := newTestHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
