// Package events provides an asynchronous, non-blocking event bus that carries
// capture and speech lifecycle notifications from the capability manager to
// observers such as loggers or UI bridges.
package events

import (
	"time"
)

// EventType names a lifecycle transition.
type EventType string

const (
	CaptureGranted    EventType = "capture.granted"
	CaptureDenied     EventType = "capture.denied"
	CaptureReleased   EventType = "capture.released"
	GraphBuilt        EventType = "graph.built"
	RecognitionStart  EventType = "recognition.started"
	SynthesisStarted  EventType = "synthesis.started"
	SynthesisFinished EventType = "synthesis.finished"
	SynthesisCanceled EventType = "synthesis.canceled"
	SynthesisFailed   EventType = "synthesis.failed"
	ResourcesReleased EventType = "resources.released"
)

// LifecycleEvent is a single lifecycle notification. Optional fields are left
// empty when they do not apply to the event type.
type LifecycleEvent struct {
	Type           EventType
	Component      string
	HandleID       string
	SessionID      string
	Classification string
	Message        string
	Retryable      bool
	Timestamp      time.Time
	Metadata       map[string]any
}

// NewLifecycleEvent returns an event stamped with the current time.
func NewLifecycleEvent(eventType EventType, component string) LifecycleEvent {
	return LifecycleEvent{
		Type:      eventType,
		Component: component,
		Timestamp: time.Now(),
	}
}

// EventConsumer processes lifecycle events delivered by the bus workers.
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event LifecycleEvent) error
}

// Publisher is the producer side of the bus. Implementations must never block.
type Publisher interface {
	TryPublish(event LifecycleEvent) bool
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
}
