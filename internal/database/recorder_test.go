package database

import (
	"testing"
	"time"

	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/logging"
)

func TestRecorderPersistsSessionHistory(t *testing.T) {
	db := openTestDB(t)
	logger := logging.NewLogger("test").SetMinLevel(logging.LogLevelError)

	bus := events.NewEventBus(16)
	recorder := NewRecorder(db, "dropper", logger)
	recorder.Attach(bus)

	bus.Publish(events.NewSessionConnectedEvent("sess-1", "wss://play.example.net"))
	bus.Publish(events.NewCycleCompletedEvent("sess-1", 1, 3))
	bus.Publish(events.NewCycleAbortedEvent("sess-1", 2, "gui_timeout"))
	bus.Publish(events.NewSessionDisconnectedEvent("sess-1", "heartbeat_timeout"))

	// Stop drains the queue, so everything is persisted afterwards
	bus.Stop()

	sessions, err := db.GetRecentSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Username != "dropper" {
		t.Errorf("Expected username dropper, got %s", sessions[0].Username)
	}
	if sessions[0].EndReason == nil || *sessions[0].EndReason != "heartbeat_timeout" {
		t.Errorf("Unexpected end reason: %v", sessions[0].EndReason)
	}

	cycles, err := db.GetCyclesForSession("sess-1")
	if err != nil {
		t.Fatalf("Failed to get cycles: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycle records, got %d", len(cycles))
	}

	stats, err := db.GetSessionStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats["disconnects"] != 1 {
		t.Errorf("Expected 1 disconnect, got %d", stats["disconnects"])
	}
}

func TestRecorderDetachStopsRecording(t *testing.T) {
	db := openTestDB(t)
	logger := logging.NewLogger("test").SetMinLevel(logging.LogLevelError)

	bus := events.NewEventBus(16)
	defer bus.Stop()

	recorder := NewRecorder(db, "dropper", logger)
	recorder.Attach(bus)
	recorder.Detach()

	bus.Publish(events.NewSessionConnectedEvent("sess-1", "server"))
	time.Sleep(50 * time.Millisecond)

	sessions, err := db.GetRecentSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Detached recorder still persisted %d sessions", len(sessions))
	}
}

func TestRecorderIgnoresEventsWithoutSessionID(t *testing.T) {
	db := openTestDB(t)
	logger := logging.NewLogger("test").SetMinLevel(logging.LogLevelError)

	bus := events.NewEventBus(16)
	recorder := NewRecorder(db, "dropper", logger)
	recorder.Attach(bus)

	bus.Publish(events.Event{
		Type: events.EventTypeSessionConnected,
		Data: map[string]interface{}{"server": "somewhere"},
	})
	bus.Stop()

	sessions, err := db.GetRecentSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected no sessions, got %d", len(sessions))
	}
}
