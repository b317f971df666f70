package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrNoSubscribers = errors.New("eventbus: no subscribers")

// Handler receives a published event. A non-nil error is reported by PublishE.
type Handler[T any] func(event T) error

type subscriber[T any] struct {
	id      uint64
	handler Handler[T]
}

// Bus is a synchronous, typed event bus. Handlers run on the publisher's
// goroutine in subscription order; a panicking handler is logged and skipped.
type Bus[T any] struct {
	log *logrus.Logger

	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber[T]
}

func New[T any](log *logrus.Logger) *Bus[T] {
	return &Bus[T]{log: log}
}

// Subscribe registers h and returns a func that removes it.
func (b *Bus[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	if h == nil {
		panic("eventbus: nil handler")
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber[T]{id: id, handler: h})
	b.mu.Unlock()

	return func() { b.unsubscribe(id) }
}

func (b *Bus[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

func (b *Bus[T]) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers event to every subscriber. Handler errors and panics are
// logged, never returned.
func (b *Bus[T]) Publish(event T) {
	err := b.PublishE(event)
	switch {
	case err == nil || b.log == nil:
	case errors.Is(err, ErrNoSubscribers):
		b.log.Warnf("eventbus.Publish: no subscribers for event %T", event)
	default:
		b.log.WithError(err).Errorf("eventbus: handler failed for event %T", event)
	}
}

// PublishE delivers event and joins every handler error, panics included.
func (b *Bus[T]) PublishE(event T) error {
	subs := b.snapshot()
	if len(subs) == 0 {
		return ErrNoSubscribers
	}
	var errs []error
	for _, s := range subs {
		if err := b.call(s.handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus[T]) snapshot() []subscriber[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]subscriber[T], len(b.subscribers))
	copy(out, b.subscribers)
	return out
}

func (b *Bus[T]) call(h Handler[T], event T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler panicked with event %+v: %v", event, r)
		}
	}()
	return h(event)
}
