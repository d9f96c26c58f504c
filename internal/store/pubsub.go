package store

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages of the channels it was opened for. The
// channel is closed when the subscription is closed or its context ends.
type Subscription interface {
	Channel() <-chan *Message
	Close() error
}

// PubSub publishes raw payloads. Implemented by Redis and by the in-process Hub.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) Subscription
}

// memorySubscription mimics redis.PubSub for the in-process hub
type memorySubscription struct {
	channels map[string]bool
	msgChan  chan *Message
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newMemorySubscription(channels []string) *memorySubscription {
	channelMap := make(map[string]bool, len(channels))
	for _, ch := range channels {
		channelMap[ch] = true
	}
	return &memorySubscription{
		channels: channelMap,
		msgChan:  make(chan *Message, 100),
		closeCh:  make(chan struct{}),
	}
}

func (m *memorySubscription) Channel() <-chan *Message {
	return m.msgChan
}

func (m *memorySubscription) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.closeCh)
		close(m.msgChan)
	}
	return nil
}

// deliver drops the message when the subscriber is not keeping up.
func (m *memorySubscription) deliver(msg *Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || !m.channels[msg.Channel] {
		return
	}
	select {
	case m.msgChan <- msg:
	default:
	}
}

// Hub is an in-process PubSub used when Redis is unavailable.
type Hub struct {
	subscribers map[string][]*memorySubscription
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string][]*memorySubscription),
	}
}

func (h *Hub) Subscribe(ctx context.Context, channels ...string) Subscription {
	sub := newMemorySubscription(channels)

	h.mu.Lock()
	for _, channel := range channels {
		h.subscribers[channel] = append(h.subscribers[channel], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}
		h.remove(sub, channels)
	}()
	return sub
}

func (h *Hub) remove(sub *memorySubscription, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		subs := h.subscribers[channel]
		for i, s := range subs {
			if s == sub {
				h.subscribers[channel] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	h.mu.RLock()
	subs := append([]*memorySubscription(nil), h.subscribers[channel]...)
	h.mu.RUnlock()

	msg := &Message{Channel: channel, Payload: string(payload)}
	for _, sub := range subs {
		sub.deliver(msg)
	}
	return nil
}

// Subscribers returns the number of live subscriptions to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}

// RedisPubSub publishes through a go-redis client.
type RedisPubSub struct {
	client *redis.Client
}

func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) Subscription {
	ps := r.client.Subscribe(ctx, channels...)
	sub := &redisSubscription{ps: ps, out: make(chan *Message, 100)}
	go sub.pump(ctx)
	return sub
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan *Message
	once sync.Once
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- &Message{Channel: m.Channel, Payload: m.Payload}:
			case <-ctx.Done():
				s.Close()
				return
			}
		}
	}
}

func (s *redisSubscription) Channel() <-chan *Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}
