package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Event types published by the booking service.
const (
	AppointmentBooked      = "appointment.booked"
	AppointmentCancelled   = "appointment.cancelled"
	DepositIncreased       = "deposit.increased"
	ManualDepositRequested = "manual_deposit.requested"
	ManualDepositDecided   = "manual_deposit.decided"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// Publisher is what producers depend on.
type Publisher interface {
	Publish(event Event) error
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type. The type "*"
// receives every event.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns their joined
// errors. Every handler runs even when an earlier one fails.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers["*"]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// PublishJSON marshals payload and publishes it under eventType.
func PublishJSON(p Publisher, eventType string, payload any) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return p.Publish(Event{Type: eventType, Payload: data})
}
