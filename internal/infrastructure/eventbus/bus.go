package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Lifecycle event types consumed by the agent processor.
const (
	EventTaskTakeover = "task.takeover"
	EventTaskResume   = "task.resume"
	EventTaskCancel   = "task.cancel"
)

// TaskEventPayload carries the task id of a lifecycle event.
type TaskEventPayload struct {
	TaskID string
}

// Event is a published event.
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent is the standard Event implementation.
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

// Type returns the event type.
func (e *BaseEvent) Type() string { return e.EventType }

// Timestamp returns the publish time.
func (e *BaseEvent) Timestamp() time.Time { return e.EventTimestamp }

// Payload returns the event payload.
func (e *BaseEvent) Payload() any { return e.EventPayload }

// NewEvent creates an event.
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// NewTaskEvent creates a lifecycle event for a task.
func NewTaskEvent(eventType, taskID string) *BaseEvent {
	return NewEvent(eventType, TaskEventPayload{TaskID: taskID})
}

// Handler handles a dispatched event.
type Handler func(ctx context.Context, event Event)

// Bus is the event bus interface.
type Bus interface {
	// Publish enqueues an event for dispatch.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for an event type ("*" for all).
	Subscribe(eventType string, handler Handler)
	// Close shuts the bus down after draining queued events.
	Close()
}

// InMemoryBus is a buffered in-process bus with a single dispatch
// goroutine. Handlers run concurrently per event and are panic-safe.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus creates a bus with the given buffer size.
func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	bus := &InMemoryBus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger.With(zap.String("component", "eventbus")),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish enqueues an event without blocking; when the buffer is full the
// event is dropped with a warning.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	select {
	case b.eventChan <- eventWrapper{ctx: ctx, event: event}:
		b.logger.Debug("Event published", zap.String("type", event.Type()))
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("type", event.Type()),
		)
	}
}

// Subscribe registers a handler for an event type.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("Handler subscribed", zap.String("event_type", eventType))
}

// Close shuts down the bus and waits for the dispatch loop to drain.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("Event bus closed")
}

func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()

	for wrapper := range b.eventChan {
		b.dispatchEvent(wrapper.ctx, wrapper.event)
	}
}

func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0)
	if h, ok := b.handlers[event.Type()]; ok {
		handlers = append(handlers, h...)
	}
	if h, ok := b.handlers["*"]; ok {
		handlers = append(handlers, h...)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Handler panicked",
						zap.String("event_type", event.Type()),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
	wg.Wait()
}
