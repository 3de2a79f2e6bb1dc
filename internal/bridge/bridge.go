// Package bridge is an in-process publish/subscribe bus for consumers that do not register with the hub.
//
// Topics are typed: a [Topic] fixes the payload type, so a subscriber to [NotificationDeleted] receives a
// [NotificationRef] and nothing else. Delivery is synchronous, in subscription order, on the publisher's goroutine.
// A panicking subscriber is recovered and logged; the others still receive the payload.
//
// The bus is a convenience layer. The state mirror stays authoritative and payloads are small deltas or
// "go re-read" signals.
package bridge

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunesync/internal/shared"
)

// Topic names a stream of payloads of type T.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) String() string { return t.name }

// Subscription is a handle returned by [Subscribe] and consumed by [Bus.Unsubscribe].
type Subscription struct {
	topic string
	id    uint64
}

// Topic returns the name of the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

type subscriber struct {
	id uint64
	fn func(any)
}

// Bus is a set of topics and their subscribers.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscriber
	logger *log.Logger
}

// New creates a [Bus]. A nil logger writes to stderr.
func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bus{
		subs:   make(map[string][]subscriber),
		logger: shared.WithLogger(logger, "component", "bridge"),
	}
}

// Subscribe registers fn for topic.
func Subscribe[T any](b *Bus, topic Topic[T], fn func(T)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := subscriber{id: b.nextID, fn: func(v any) { fn(v.(T)) }}
	b.subs[topic.name] = append(b.subs[topic.name], sub)
	return &Subscription{topic: topic.name, id: sub.id}
}

// Unsubscribe removes the subscription. Unknown or repeated subscriptions are ignored.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[s.topic]
	for i, sub := range subs {
		if sub.id == s.id {
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, s.topic)
			} else {
				b.subs[s.topic] = next
			}
			return
		}
	}
}

// Publish delivers payload to every current subscriber of topic.
//
// Subscribers may subscribe or unsubscribe from inside the callback; the change applies to the next publish.
func Publish[T any](b *Bus, topic Topic[T], payload T) {
	b.mu.Lock()
	subs := b.subs[topic.name]
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(topic.name, sub, payload)
	}
}

// Subscribers counts the subscribers of topic.
func Subscribers[T any](b *Bus, topic Topic[T]) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic.name])
}

func (b *Bus) deliver(topic string, sub subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", "topic", topic, "panic", r)
		}
	}()
	sub.fn(payload)
}
