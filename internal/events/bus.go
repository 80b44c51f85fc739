package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
)

type subscription struct {
	id int
	fn domain.Listener
}

// Bus implements domain.EventBus. Fan-out is synchronous in the publisher's
// goroutine and honours registration order. There is no replay: a listener
// added after an event fired never sees it; consumers that need current
// state query the controller snapshot at subscribe time.
type Bus struct {
	mu        sync.RWMutex
	next      int
	listeners map[domain.EventType][]subscription
	log       *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		listeners: make(map[domain.EventType][]subscription),
		log:       log,
	}
}

// Subscribe implements domain.EventBus and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(kind domain.EventType, fn domain.Listener) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.listeners[kind] = append(b.listeners[kind], subscription{id: id, fn: fn})
	return id
}

// Unsubscribe implements domain.EventBus. Unknown handles are ignored.
func (b *Bus) Unsubscribe(kind domain.EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.listeners[kind]
	for i, sub := range subs {
		if sub.id == id {
			b.listeners[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish implements domain.EventBus. A panicking listener is isolated and
// logged; delivery continues with the remaining listeners.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.listeners[event.Type]))
	copy(subs, b.listeners[event.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked",
				"event", string(event.Type),
				"listener_id", sub.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	sub.fn(event)
}

var _ domain.EventBus = (*Bus)(nil)
