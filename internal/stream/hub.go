// Package stream provides real-time change distribution functionality.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mentor-desk/internal/store"
)

// WildcardTopic subscribes a handler to every topic.
const WildcardTopic = store.TopicAll

// HubConfig holds configuration for the Stream Hub.
type HubConfig struct {
	// BufferSize is the size of the internal change channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's queue.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           256,
		SubscriberBufferSize: 64,
	}
}

// Hub fans published changes out to topic subscribers. Each subscriber
// has its own queue and goroutine so a slow handler only delays itself.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
	changes     chan store.Change
	done        chan struct{}
	loopDone    chan struct{}
	started     bool
	stopped     bool
	nextID      uint64
	handlers    sync.WaitGroup

	received  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// Subscriber is a registered handler with its delivery queue.
type Subscriber struct {
	id           uint64
	topic        string
	hub          *Hub
	queue        chan store.Change
	handler      store.ChangeHandler
	once         sync.Once
	DroppedCount atomic.Uint64
	CreatedAt    time.Time
}

// Topic implements store.Subscription.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Unsubscribe implements store.Subscription.
func (s *Subscriber) Unsubscribe() {
	s.hub.Unsubscribe(s)
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.queue) })
}

func (s *Subscriber) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for change := range s.queue {
		s.deliver(change)
	}
}

func (s *Subscriber) deliver(change store.Change) {
	defer func() { _ = recover() }()
	s.handler(change)
	s.hub.delivered.Add(1)
}

// NewHub creates a new stream hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new stream hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string][]*Subscriber),
		changes:     make(chan store.Change, config.BufferSize),
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started || h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
	return nil
}

// broadcastLoop distributes changes until the context ends or Stop drains it.
func (h *Hub) broadcastLoop(ctx context.Context) {
	defer close(h.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			for {
				select {
				case change := <-h.changes:
					h.broadcast(change)
				default:
					return
				}
			}
		case change := <-h.changes:
			h.broadcast(change)
		}
	}
}

// Stop delivers every change already published, then closes all subscribers
// and waits for their handlers to return. Publishing after Stop is a no-op.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	started := h.started
	close(h.done)
	h.mu.Unlock()

	if started {
		<-h.loopDone
	}

	h.mu.Lock()
	for topic, subs := range h.subscribers {
		for _, sub := range subs {
			sub.close()
		}
		delete(h.subscribers, topic)
	}
	h.mu.Unlock()

	h.handlers.Wait()
}

// Subscribe registers a handler for a topic, or for every topic with "*".
func (h *Hub) Subscribe(topic string, handler store.ChangeHandler) store.Subscription {
	sub := &Subscriber{
		topic:     topic,
		hub:       h,
		queue:     make(chan store.Change, h.config.SubscriberBufferSize),
		handler:   handler,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub.id = h.nextID
	if h.stopped {
		sub.close()
		return sub
	}
	h.subscribers[topic] = append(h.subscribers[topic], sub)
	h.handlers.Add(1)
	go sub.run(&h.handlers)

	return sub
}

// Unsubscribe removes a subscription. Changes already queued for it are
// still delivered.
func (h *Hub) Unsubscribe(sub store.Subscription) {
	s, ok := sub.(*Subscriber)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[s.topic]
	for i, existing := range subs {
		if existing.id == s.id {
			h.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			s.close()
			break
		}
	}
	if len(h.subscribers[s.topic]) == 0 {
		delete(h.subscribers, s.topic)
	}
}

// Publish sends a change to the hub for distribution.
// This is non-blocking; if the internal buffer is full the change is dropped.
func (h *Hub) Publish(change store.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	if change.At.IsZero() {
		change.At = time.Now()
	}
	select {
	case h.changes <- change:
	default:
		h.dropped.Add(1)
	}
}

// broadcast queues a change for the topic's subscribers and wildcard subscribers.
func (h *Hub) broadcast(change store.Change) {
	h.received.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.subscribers[change.Topic]
	if change.Topic != WildcardTopic {
		targets = append(targets[:len(targets):len(targets)], h.subscribers[WildcardTopic]...)
	}
	for _, sub := range targets {
		select {
		case sub.queue <- change:
		default:
			sub.DroppedCount.Add(1)
			h.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started && !h.stopped
}

// HubMetrics contains hub delivery metrics.
type HubMetrics struct {
	Received    uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers int
	Topics      int
}

// Metrics returns hub metrics.
func (h *Hub) Metrics() HubMetrics {
	h.mu.RLock()
	subscribers := 0
	for _, subs := range h.subscribers {
		subscribers += len(subs)
	}
	topics := len(h.subscribers)
	h.mu.RUnlock()

	return HubMetrics{
		Received:    h.received.Load(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
		Subscribers: subscribers,
		Topics:      topics,
	}
}

var _ store.ChangeFeed = (*Hub)(nil)
