package listener

import (
	"log/slog"
	"sync"
)

// Broadcaster hands every published status frame to each subscribed
// connection. A subscriber whose queue is full is dropped; its connection
// then winds down on its own.
type Broadcaster struct {
	logger *slog.Logger
	queue  int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one connection's view of the status stream.
type Subscription struct {
	name   string
	frames chan []byte
	gone   chan struct{} // closed once unsubscribed
}

// Frames delivers published frames in order.
func (s *Subscription) Frames() <-chan []byte { return s.frames }

// Gone is closed when the subscription has ended.
func (s *Subscription) Gone() <-chan struct{} { return s.gone }

// NewBroadcaster creates a broadcaster with queue frames of slack per
// subscriber.
func NewBroadcaster(logger *slog.Logger, queue int) *Broadcaster {
	if queue <= 0 {
		queue = 32
	}
	return &Broadcaster{
		logger: logger,
		queue:  queue,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber. first, if non-nil, is queued ahead of any
// later frame. After Close the returned subscription is already gone.
func (b *Broadcaster) Subscribe(name string, first []byte) *Subscription {
	s := &Subscription{
		name:   name,
		frames: make(chan []byte, b.queue),
		gone:   make(chan struct{}),
	}
	if first != nil {
		s.frames <- first
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.gone)
		return s
	}
	b.subs[s] = struct{}{}
	b.logger.Info("ws client subscribed", "remote_addr", name, "clients", len(b.subs))
	return s
}

// Unsubscribe ends s. It is safe to call more than once.
func (b *Broadcaster) Unsubscribe(s *Subscription, reason string) {
	b.mu.Lock()
	_, ok := b.subs[s]
	if ok {
		delete(b.subs, s)
		close(s.gone)
	}
	n := len(b.subs)
	b.mu.Unlock()

	if ok {
		b.logger.Info("ws client unsubscribed", "remote_addr", s.name, "reason", reason, "clients", n)
	}
}

// Publish queues frame for every subscriber without blocking.
func (b *Broadcaster) Publish(frame []byte) {
	var slow []*Subscription

	b.mu.Lock()
	for s := range b.subs {
		select {
		case s.frames <- frame:
		default:
			slow = append(slow, s)
		}
	}
	b.mu.Unlock()

	for _, s := range slow {
		b.Unsubscribe(s, "slow_client")
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.gone)
		delete(b.subs, s)
	}
}
