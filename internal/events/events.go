package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Event types published by the storefront.
const (
	ReservationConfirmed = "reservation.confirmed"
	ReservationFailed    = "reservation.failed"
	CartFull             = "cart.full"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// New builds an event with v encoded as JSON payload.
func New(eventType string, v any) (Event, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: payload}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	seq         atomic.Int64
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the number of
// handlers that failed. Handlers run synchronously in subscription order.
func (b *EventBus) Publish(event Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == 0 {
		event.ID = b.seq.Add(1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			failed++
			b.logger.Error().Err(err).Str("event", event.Type).Int64("id", event.ID).Msg("event handler failed")
		}
	}
	return failed
}

// PublishAsync publishes on a new goroutine so slow subscribers such as
// outbound notifications do not hold up the caller.
func (b *EventBus) PublishAsync(event Event) {
	go b.Publish(event)
}
