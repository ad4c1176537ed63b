package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is one row of the sessions table
type SessionRecord struct {
	ID        string
	Server    string
	Username  string
	StartedAt time.Time
	EndedAt   *time.Time
	EndReason *string
}

// CycleRecord is one row of the cycle_log table
type CycleRecord struct {
	ID           int64
	SessionID    string
	CycleNumber  int
	Status       string
	SlotsDropped int
	Reason       *string
	RecordedAt   time.Time
}

// Cycle statuses
const (
	CycleStatusCompleted = "completed"
	CycleStatusAborted   = "aborted"
)

// StartSession records a new session
func (db *DB) StartSession(id, server, username string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, server, username, started_at)
			VALUES (?, ?, ?, ?)
		`, id, server, username, time.Now())
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

// EndSession marks a session as ended with a reason
func (db *DB) EndSession(id, reason string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE sessions
			SET ended_at = ?, end_reason = ?
			WHERE id = ? AND ended_at IS NULL
		`, time.Now(), reason, id)
		return err
	})
}

// RecordCycle logs one completed or aborted cycle iteration
func (db *DB) RecordCycle(sessionID string, cycleNumber int, status string, slotsDropped int, reason string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		var reasonVal interface{}
		if reason != "" {
			reasonVal = reason
		}
		_, err := tx.Exec(`
			INSERT INTO cycle_log (session_id, cycle_number, status, slots_dropped, reason, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sessionID, cycleNumber, status, slotsDropped, reasonVal, time.Now())
		return err
	})
}

// RecordDisconnect logs a disconnect with its reason
func (db *DB) RecordDisconnect(sessionID, reason string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO disconnect_log (session_id, reason, recorded_at)
			VALUES (?, ?, ?)
		`, sessionID, reason, time.Now())
		return err
	})
}

// GetRecentSessions returns the most recent sessions, newest first
func (db *DB) GetRecentSessions(limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(`
		SELECT id, server, username, started_at, ended_at, end_reason
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*SessionRecord{}
	for rows.Next() {
		rec := &SessionRecord{}
		err := rows.Scan(&rec.ID, &rec.Server, &rec.Username, &rec.StartedAt, &rec.EndedAt, &rec.EndReason)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}

	return sessions, rows.Err()
}

// GetCyclesForSession returns the cycle log of one session in order
func (db *DB) GetCyclesForSession(sessionID string) ([]*CycleRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, cycle_number, status, slots_dropped, reason, recorded_at
		FROM cycle_log
		WHERE session_id = ?
		ORDER BY recorded_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cycles := []*CycleRecord{}
	for rows.Next() {
		rec := &CycleRecord{}
		err := rows.Scan(&rec.ID, &rec.SessionID, &rec.CycleNumber, &rec.Status, &rec.SlotsDropped, &rec.Reason, &rec.RecordedAt)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, rec)
	}

	return cycles, rows.Err()
}

// GetSessionStats returns aggregate counts across all sessions
func (db *DB) GetSessionStats() (map[string]int64, error) {
	stats := make(map[string]int64)

	queries := map[string]string{
		"sessions":         "SELECT COUNT(*) FROM sessions",
		"cycles_completed": "SELECT COUNT(*) FROM cycle_log WHERE status = 'completed'",
		"cycles_aborted":   "SELECT COUNT(*) FROM cycle_log WHERE status = 'aborted'",
		"disconnects":      "SELECT COUNT(*) FROM disconnect_log",
	}

	for name, query := range queries {
		var count int64
		if err := db.conn.QueryRow(query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		stats[name] = count
	}

	return stats, nil
}
