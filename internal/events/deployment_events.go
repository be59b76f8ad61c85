// Package events provides a publish/subscribe bus for deployment lifecycle events.
package events

import (
	"sync"
	"time"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// EventType represents the type of deployment event
type EventType string

const (
	// EventStatusChanged is emitted when the overall deployment status changes
	EventStatusChanged EventType = "status_changed"
	// EventHealthChecked is emitted after a probe cycle has been recorded
	EventHealthChecked EventType = "health_checked"
	// EventDeploymentDeleted is emitted once a deployment and its metrics are removed
	EventDeploymentDeleted EventType = "deployment_deleted"
)

// DeploymentEvent represents an event in the deployment lifecycle
type DeploymentEvent struct {
	Type         EventType
	DeploymentID interfaces.DeploymentID
	Timestamp    time.Time

	// Event-specific data
	PreviousStatus interfaces.DeploymentStatus
	Status         interfaces.DeploymentStatus
	HealthChecks   []interfaces.HealthCheckResult
}

// EventHandler is a function that handles deployment events
type EventHandler func(event DeploymentEvent)

// EventBus manages deployment event subscriptions and dispatching
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	synchronous bool // When true, handlers are called synchronously (for testing)
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// NewSynchronousEventBus creates a new event bus that calls handlers synchronously (for testing)
func NewSynchronousEventBus() *EventBus {
	return &EventBus{
		handlers:    make(map[EventType][]EventHandler),
		synchronous: true,
	}
}

// Subscribe registers a handler for specific event types
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// Publish sends an event to all registered handlers
func (eb *EventBus) Publish(event DeploymentEvent) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	handlers := eb.handlers[event.Type]
	synchronous := eb.synchronous
	eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if synchronous {
		for _, handler := range handlers {
			handler(event)
		}
		return
	}
	for _, handler := range handlers {
		go handler(event)
	}
}

// PublishStatusChange is a convenience method for status change events
func (eb *EventBus) PublishStatusChange(id interfaces.DeploymentID, from, to interfaces.DeploymentStatus) {
	eb.Publish(DeploymentEvent{
		Type:           EventStatusChanged,
		DeploymentID:   id,
		PreviousStatus: from,
		Status:         to,
	})
}

// PublishHealthChecked is a convenience method for probe cycle events
func (eb *EventBus) PublishHealthChecked(id interfaces.DeploymentID, results []interfaces.HealthCheckResult) {
	eb.Publish(DeploymentEvent{
		Type:         EventHealthChecked,
		DeploymentID: id,
		HealthChecks: results,
	})
}

// PublishDeleted is a convenience method for deletion events
func (eb *EventBus) PublishDeleted(id interfaces.DeploymentID, lastStatus interfaces.DeploymentStatus) {
	eb.Publish(DeploymentEvent{
		Type:           EventDeploymentDeleted,
		DeploymentID:   id,
		PreviousStatus: lastStatus,
	})
}
