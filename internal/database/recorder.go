package database

import (
	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/logging"
)

// Recorder subscribes to the event bus and persists session history.
// Keeping persistence on the bus keeps the session components free of
// storage concerns and makes the wiring explicit.
type Recorder struct {
	db       *DB
	username string
	logger   *logging.Logger
	subs     []events.SubscriptionID
	bus      events.EventBus
}

// NewRecorder creates a recorder writing to db
func NewRecorder(db *DB, username string, logger *logging.Logger) *Recorder {
	return &Recorder{
		db:       db,
		username: username,
		logger:   logger,
	}
}

// Attach subscribes the recorder to the bus
func (r *Recorder) Attach(bus events.EventBus) {
	r.bus = bus
	r.subs = []events.SubscriptionID{
		bus.Subscribe(events.EventTypeSessionConnected, r.onSessionConnected),
		bus.Subscribe(events.EventTypeSessionDisconnected, r.onSessionDisconnected),
		bus.Subscribe(events.EventTypeCycleCompleted, r.onCycleCompleted),
		bus.Subscribe(events.EventTypeCycleAborted, r.onCycleAborted),
	}
}

// Detach removes the recorder's subscriptions
func (r *Recorder) Detach() {
	if r.bus == nil {
		return
	}
	for _, id := range r.subs {
		r.bus.Unsubscribe(id)
	}
	r.subs = nil
}

func (r *Recorder) onSessionConnected(ev events.Event) {
	sessionID, _ := ev.Data["session_id"].(string)
	server, _ := ev.Data["server"].(string)
	if sessionID == "" {
		return
	}
	if err := r.db.StartSession(sessionID, server, r.username); err != nil {
		r.logger.Error("failed to record session start", err)
	}
}

func (r *Recorder) onSessionDisconnected(ev events.Event) {
	sessionID, _ := ev.Data["session_id"].(string)
	reason, _ := ev.Data["reason"].(string)
	if sessionID == "" {
		return
	}
	if err := r.db.RecordDisconnect(sessionID, reason); err != nil {
		r.logger.Error("failed to record disconnect", err)
	}
	if err := r.db.EndSession(sessionID, reason); err != nil {
		r.logger.Error("failed to record session end", err)
	}
}

func (r *Recorder) onCycleCompleted(ev events.Event) {
	sessionID, _ := ev.Data["session_id"].(string)
	number, _ := ev.Data["cycle_number"].(int)
	dropped, _ := ev.Data["slots_dropped"].(int)
	if sessionID == "" {
		return
	}
	if err := r.db.RecordCycle(sessionID, number, CycleStatusCompleted, dropped, ""); err != nil {
		r.logger.Error("failed to record cycle", err)
	}
}

func (r *Recorder) onCycleAborted(ev events.Event) {
	sessionID, _ := ev.Data["session_id"].(string)
	number, _ := ev.Data["cycle_number"].(int)
	reason, _ := ev.Data["reason"].(string)
	if sessionID == "" {
		return
	}
	if err := r.db.RecordCycle(sessionID, number, CycleStatusAborted, 0, reason); err != nil {
		r.logger.Error("failed to record cycle", err)
	}
}
