package events

import "time"

// EventType represents different types of events in the system
type EventType string

const (
	// Session lifecycle events
	EventTypeSessionConnecting   EventType = "session.connecting"
	EventTypeSessionConnected    EventType = "session.connected"
	EventTypeSessionReady        EventType = "session.ready"
	EventTypeSessionDisconnected EventType = "session.disconnected"

	// Reconnect events
	EventTypeReconnectScheduled EventType = "reconnect.scheduled"
	EventTypeReconnectExhausted EventType = "reconnect.exhausted"

	// Heartbeat events
	EventTypeHeartbeatLatency EventType = "heartbeat.latency"

	// Order cycle events
	EventTypeCycleStarted   EventType = "cycle.started"
	EventTypeCycleCompleted EventType = "cycle.completed"
	EventTypeCycleAborted   EventType = "cycle.aborted"
	EventTypeOrdersStopped  EventType = "orders.stopped"

	// Chat events
	EventTypeChatReceived EventType = "chat.received"
)

// Event represents a system event with metadata
type Event struct {
	Type      EventType
	Source    string
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish sends an event to all subscribers (blocking)
	Publish(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// Helper functions to create common events

// NewSessionConnectedEvent creates a session connected event
func NewSessionConnectedEvent(sessionID, server string) Event {
	return Event{
		Type:      EventTypeSessionConnected,
		Source:    "orchestrator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"server":     server,
		},
	}
}

// NewSessionReadyEvent creates a session ready event
func NewSessionReadyEvent(sessionID string) Event {
	return Event{
		Type:      EventTypeSessionReady,
		Source:    "orchestrator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
		},
	}
}

// NewSessionDisconnectedEvent creates a session disconnected event
func NewSessionDisconnectedEvent(sessionID, reason string) Event {
	return Event{
		Type:      EventTypeSessionDisconnected,
		Source:    "orchestrator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
	}
}

// NewReconnectScheduledEvent creates a reconnect scheduled event
func NewReconnectScheduledEvent(attempt int, delay time.Duration) Event {
	return Event{
		Type:      EventTypeReconnectScheduled,
		Source:    "reconnect",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		},
	}
}

// NewReconnectExhaustedEvent creates a reconnect exhausted event
func NewReconnectExhaustedEvent(attempts int) Event {
	return Event{
		Type:      EventTypeReconnectExhausted,
		Source:    "reconnect",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"attempts": attempts,
		},
	}
}

// NewHeartbeatLatencyEvent creates a heartbeat latency event
func NewHeartbeatLatencyEvent(latency time.Duration) Event {
	return Event{
		Type:      EventTypeHeartbeatLatency,
		Source:    "detector",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"latency_ms": latency.Milliseconds(),
		},
	}
}

// NewCycleStartedEvent creates a cycle started event
func NewCycleStartedEvent(sessionID string, cycleNumber int) Event {
	return Event{
		Type:      EventTypeCycleStarted,
		Source:    "cycle",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"cycle_number": cycleNumber,
		},
	}
}

// NewCycleCompletedEvent creates a cycle completed event
func NewCycleCompletedEvent(sessionID string, cycleNumber, slotsDropped int) Event {
	return Event{
		Type:      EventTypeCycleCompleted,
		Source:    "cycle",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id":    sessionID,
			"cycle_number":  cycleNumber,
			"slots_dropped": slotsDropped,
		},
	}
}

// NewCycleAbortedEvent creates a cycle aborted event
func NewCycleAbortedEvent(sessionID string, cycleNumber int, reason string) Event {
	return Event{
		Type:      EventTypeCycleAborted,
		Source:    "cycle",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"cycle_number": cycleNumber,
			"reason":       reason,
		},
	}
}

// NewChatReceivedEvent creates a chat received event
func NewChatReceivedEvent(message string) Event {
	return Event{
		Type:      EventTypeChatReceived,
		Source:    "protocol",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": message,
		},
	}
}
