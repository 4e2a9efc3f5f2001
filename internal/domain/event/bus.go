// Package event provides the in-process change notification bus.
//
// Stores publish a topic after every successful mutation; subscribers re-read
// whatever they display. Delivery is synchronous and in registration order.
// Each handler is isolated: an error or panic in one handler is recorded and
// the remaining handlers still run.
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Topic names a kind of change.
type Topic string

// Known topics.
const (
	ProductsUpdated Topic = "products_updated"
	HeroUpdated     Topic = "hero_updated"
	UsersUpdated    Topic = "users_updated"
	ContactsUpdated Topic = "contacts_updated"
)

// Topics lists every known topic.
func Topics() []Topic {
	return []Topic{ProductsUpdated, HeroUpdated, UsersUpdated, ContactsUpdated}
}

// Handler receives a notification. A returned error is logged and reported
// to the publisher but does not stop delivery to other handlers.
type Handler func(ctx context.Context, topic Topic) error

// Publisher is the write side of the bus, used by stores.
type Publisher interface {
	Publish(ctx context.Context, topic Topic) error
}

// Observer is notified of deliveries and handler failures (metrics hook).
type Observer interface {
	Published(topic Topic)
	HandlerFailed(topic Topic)
}

// HandlerError describes a failed delivery.
type HandlerError struct {
	Topic Topic
	// Index is the handler's position in the delivery order.
	Index int
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %d for %s: %v", e.Index, e.Topic, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

type registration struct {
	id      uint64
	handler Handler
}

// Bus maps topics to ordered handler lists.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]registration
	nextID   uint64
	logger   *slog.Logger
	observer Observer
}

// Option configures a Bus.
type Option func(*Bus)

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(b *Bus) { b.observer = o }
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[Topic][]registration),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription identifies a registration. Handlers are functions and cannot
// be compared, so the subscription is the unsubscribe token.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    uint64
	once  sync.Once
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.topic, s.id) })
}

// Subscribe appends h to the handlers of topic.
func (b *Bus) Subscribe(topic Topic, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], registration{id: id, handler: h})
	return &Subscription{bus: b, topic: topic, id: id}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[topic]
	for i, r := range regs {
		if r.id == id {
			// Copy so an in-flight Publish keeps its own view of the list.
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, topic)
			} else {
				b.handlers[topic] = next
			}
			return
		}
	}
}

// Count returns the number of handlers registered for topic.
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

// Publish delivers topic to the handlers registered when the call starts.
// It returns the joined *HandlerError values of failing handlers, or nil.
func (b *Bus) Publish(ctx context.Context, topic Topic) error {
	b.mu.RLock()
	regs := b.handlers[topic]
	b.mu.RUnlock()

	if b.observer != nil {
		b.observer.Published(topic)
	}

	var errs []error
	for i, r := range regs {
		if err := b.deliver(ctx, topic, r.handler); err != nil {
			herr := &HandlerError{Topic: topic, Index: i, Err: err}
			b.logger.Error("event handler failed", "topic", topic, "index", i, "error", err)
			if b.observer != nil {
				b.observer.HandlerFailed(topic)
			}
			errs = append(errs, herr)
		}
	}
	return errors.Join(errs...)
}

// deliver invokes h, converting a panic into an error.
func (b *Bus) deliver(ctx context.Context, topic Topic, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, topic)
}

// Compile-time interface verification.
var _ Publisher = (*Bus)(nil)
