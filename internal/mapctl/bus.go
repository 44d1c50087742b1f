package mapctl

import "sync"

// Topics published by the controller for cross-component signaling:
// style reloads, backdrop blur, popup and selection changes.
const (
	TopicStyleChanged     = "map.style_changed"
	TopicBlurChanged      = "map.blur_changed"
	TopicPopupUpdated     = "popup.updated"
	TopicBoundarySelected = "boundary.selected"
)

// Event is a published bus message.
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Bus is an explicit topic-based publish/subscribe channel. Late
// subscribers receive subsequent events only; there is no replay.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish delivers an event to every current subscriber of its topic.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(ev)
	}
}
