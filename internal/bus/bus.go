// Package bus is the in-process message fabric every agent talks over.
// Topics are slash-separated strings; delivery is per-topic FIFO from a
// single publisher, duplicate deliveries are suppressed by message ID,
// and retained messages are replayed to late subscribers.
package bus

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// Message is one delivery to a subscriber.
type Message struct {
	ID       uint64
	Topic    string
	Payload  []byte
	Retained bool
}

// dedupWindow is the number of recent message IDs each subscription
// remembers to drop redelivered duplicates.
const dedupWindow = 128

// DefaultBuffer is the subscription channel depth used when callers
// pass a non-positive buffer size.
const DefaultBuffer = 256

// Subscription receives messages for a set of topic filters.
type Subscription struct {
	name    string
	filters []string
	ch      chan Message

	mu       sync.Mutex
	seen     map[uint64]struct{}
	seenRing [dedupWindow]uint64
	seenPos  int
	closed   bool
}

// C is the subscriber's inbox. Closed on Unsubscribe.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// matches reports whether topic matches any of the subscription's
// filters. A filter is an exact topic, a "prefix/#" wildcard, or "#".
func (s *Subscription) matches(topic string) bool {
	for _, f := range s.filters {
		if f == topic || f == "#" {
			return true
		}
		if prefix, ok := strings.CutSuffix(f, "/#"); ok && strings.HasPrefix(topic, prefix+"/") {
			return true
		}
	}
	return false
}

// deliver enqueues msg unless it is a duplicate or the inbox is full.
func (s *Subscription) deliver(msg Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	delete(s.seen, s.seenRing[s.seenPos])
	s.seenRing[s.seenPos] = msg.ID
	s.seen[msg.ID] = struct{}{}
	s.seenPos = (s.seenPos + 1) % dedupWindow
	s.mu.Unlock()

	select {
	case s.ch <- msg:
	default:
		// Subscriber inbox full, skip
		slog.Warn("bus: subscriber inbox full, dropping message",
			"subscriber", s.name, "topic", msg.Topic)
	}
}

// Bus routes published messages to matching subscriptions.
type Bus struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	retained map[string]Message
	nextID   atomic.Uint64
}

func New() *Bus {
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		retained: make(map[string]Message),
	}
}

// Subscribe registers an inbox for the given topic filters. Retained
// messages on matching topics are replayed into the inbox immediately.
func (b *Bus) Subscribe(name string, buffer int, filters ...string) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{
		name:    name,
		filters: filters,
		ch:      make(chan Message, buffer),
		seen:    make(map[uint64]struct{}, dedupWindow),
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	var replay []Message
	for topic, msg := range b.retained {
		if s.matches(topic) {
			replay = append(replay, msg)
		}
	}
	b.mu.Unlock()

	for _, msg := range replay {
		s.deliver(msg)
	}
	return s
}

// Unsubscribe removes the subscription and closes its inbox.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.ch)
}

// Publish fans payload out to every matching subscriber.
func (b *Bus) Publish(topic string, payload []byte) {
	b.publish(topic, payload, false)
}

// PublishRetained publishes and additionally stores the message so
// future subscribers receive it on subscribe.
func (b *Bus) PublishRetained(topic string, payload []byte) {
	b.publish(topic, payload, true)
}

func (b *Bus) publish(topic string, payload []byte, retained bool) {
	msg := Message{
		ID:       b.nextID.Add(1),
		Topic:    topic,
		Payload:  payload,
		Retained: retained,
	}

	b.mu.Lock()
	if retained {
		b.retained[topic] = msg
	}
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		if s.matches(topic) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.deliver(msg)
	}
}
