package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Version()
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if version != 3 {
		t.Errorf("Expected schema version 3, got %d", version)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	err := db.StartSession("sess-1", "wss://play.example.net", "dropper")
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	sessions, err := db.GetRecentSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-1" {
		t.Errorf("Expected id sess-1, got %s", sessions[0].ID)
	}
	if sessions[0].EndedAt != nil {
		t.Error("Open session should have no end time")
	}

	err = db.EndSession("sess-1", "heartbeat_timeout")
	if err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}

	sessions, err = db.GetRecentSessions(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if sessions[0].EndedAt == nil {
		t.Fatal("Ended session should have an end time")
	}
	if sessions[0].EndReason == nil || *sessions[0].EndReason != "heartbeat_timeout" {
		t.Errorf("Unexpected end reason: %v", sessions[0].EndReason)
	}
}

func TestEndSessionOnlyOnce(t *testing.T) {
	db := openTestDB(t)

	if err := db.StartSession("sess-1", "server", "user"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if err := db.EndSession("sess-1", "first_reason"); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}
	// A second end must not overwrite the original reason
	if err := db.EndSession("sess-1", "second_reason"); err != nil {
		t.Fatalf("Second end errored: %v", err)
	}

	sessions, err := db.GetRecentSessions(1)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if *sessions[0].EndReason != "first_reason" {
		t.Errorf("End reason was overwritten: %s", *sessions[0].EndReason)
	}
}

func TestCycleLog(t *testing.T) {
	db := openTestDB(t)

	if err := db.StartSession("sess-1", "server", "user"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	if err := db.RecordCycle("sess-1", 1, CycleStatusCompleted, 3, ""); err != nil {
		t.Fatalf("Failed to record cycle: %v", err)
	}
	if err := db.RecordCycle("sess-1", 2, CycleStatusAborted, 0, "gui_timeout"); err != nil {
		t.Fatalf("Failed to record cycle: %v", err)
	}

	cycles, err := db.GetCyclesForSession("sess-1")
	if err != nil {
		t.Fatalf("Failed to get cycles: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycles, got %d", len(cycles))
	}

	if cycles[0].Status != CycleStatusCompleted || cycles[0].SlotsDropped != 3 {
		t.Errorf("Unexpected first cycle: %+v", cycles[0])
	}
	if cycles[0].Reason != nil {
		t.Errorf("Completed cycle should have no reason, got %v", *cycles[0].Reason)
	}
	if cycles[1].Status != CycleStatusAborted {
		t.Errorf("Unexpected second cycle status: %s", cycles[1].Status)
	}
	if cycles[1].Reason == nil || *cycles[1].Reason != "gui_timeout" {
		t.Errorf("Unexpected abort reason: %v", cycles[1].Reason)
	}
}

func TestSessionStats(t *testing.T) {
	db := openTestDB(t)

	if err := db.StartSession("sess-1", "server", "user"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if err := db.RecordCycle("sess-1", 1, CycleStatusCompleted, 3, ""); err != nil {
		t.Fatalf("Failed to record cycle: %v", err)
	}
	if err := db.RecordCycle("sess-1", 2, CycleStatusAborted, 0, "gui_timeout"); err != nil {
		t.Fatalf("Failed to record cycle: %v", err)
	}
	if err := db.RecordDisconnect("sess-1", "heartbeat_timeout"); err != nil {
		t.Fatalf("Failed to record disconnect: %v", err)
	}

	stats, err := db.GetSessionStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats["sessions"] != 1 {
		t.Errorf("Expected 1 session, got %d", stats["sessions"])
	}
	if stats["cycles_completed"] != 1 {
		t.Errorf("Expected 1 completed cycle, got %d", stats["cycles_completed"])
	}
	if stats["cycles_aborted"] != 1 {
		t.Errorf("Expected 1 aborted cycle, got %d", stats["cycles_aborted"])
	}
	if stats["disconnects"] != 1 {
		t.Errorf("Expected 1 disconnect, got %d", stats["disconnects"])
	}
}

func TestGetRecentSessionsOrder(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		if err := db.StartSession(id, "server", "user"); err != nil {
			t.Fatalf("Failed to start session %s: %v", id, err)
		}
		// started_at has sub-second precision; keep the inserts apart
		time.Sleep(5 * time.Millisecond)
	}

	sessions, err := db.GetRecentSessions(2)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-3" || sessions[1].ID != "sess-2" {
		t.Errorf("Expected newest first, got %s, %s", sessions[0].ID, sessions[1].ID)
	}
}
