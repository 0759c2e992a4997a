// ABOUTME: Defines the event stream for the execution loop - lets consumers
// ABOUTME: observe tool calls and results without coupling to the loop.
package orchestrator

import (
	"sync"

	"github.com/latchkey-labs/crossbar/tool"
)

// EventType identifies the kind of orchestrator event.
type EventType string

const (
	EventToolCall    EventType = "tool_call"
	EventToolResult  EventType = "tool_result"
	EventStateChange EventType = "state_change"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event represents an orchestrator lifecycle event.
type Event struct {
	Type EventType

	// For EventToolCall
	Call tool.Call

	// For EventToolResult
	Result tool.Result

	// For EventStateChange
	FromState State
	ToState   State

	// For EventError
	Error error

	// For EventComplete
	FinalText string
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(call tool.Call) Event {
	return Event{Type: EventToolCall, Call: call}
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(result tool.Result) Event {
	return Event{Type: EventToolResult, Result: result}
}

// NewStateChangeEvent creates a state transition event.
func NewStateChangeEvent(from, to State) Event {
	return Event{Type: EventStateChange, FromState: from, ToState: to}
}

// NewCompleteEvent creates a completion event.
func NewCompleteEvent(finalText string) Event {
	return Event{Type: EventComplete, FinalText: finalText}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) Event {
	return Event{Type: EventError, Error: err}
}

// EventBus manages event distribution to subscribers.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	closed      bool
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make([]chan Event, 0)}
}

// Subscribe returns a buffered channel that receives events.
func (eb *EventBus) Subscribe() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, 100)
	if eb.closed {
		close(ch)
		return ch
	}
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Publish sends an event to all subscribers. Publishing never blocks:
// if a subscriber's buffer is full, the event is dropped for that
// subscriber so a slow consumer cannot stall the loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts down the event bus.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for _, ch := range eb.subscribers {
		close(ch)
	}
}
