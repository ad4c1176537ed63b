package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/guihelper"
	"github.com/kethal/orderbot/internal/logging"
	"github.com/kethal/orderbot/internal/protocol"
)

// ProtocolClient is the handle the orchestrator owns for one session
// generation
type ProtocolClient interface {
	Write(name string, payload interface{}) error
	Close() error
}

// DialFunc creates a protocol client. Injected so tests can supply a
// fake transport.
type DialFunc func(ctx context.Context, server, username string, handler protocol.EventHandler) (ProtocolClient, error)

// DefaultDial connects over the real websocket transport
func DefaultDial(logger *logging.Logger) DialFunc {
	return func(ctx context.Context, server, username string, handler protocol.EventHandler) (ProtocolClient, error) {
		return protocol.Dial(ctx, server, username, handler, logger)
	}
}

// Orchestrator wires the session components together. It owns the
// protocol-client handle and builds a fresh state machine binding,
// detector, cycle and GUI helper for every connection generation; a
// reconnect discards the old generation wholesale instead of mutating
// it in place.
type Orchestrator struct {
	cfg        *Config
	logger     *logging.Logger
	bus        events.EventBus
	dial       DialFunc
	machine    *Machine
	supervisor *Supervisor

	mu           sync.Mutex
	gen          int
	dialing      bool
	client       ProtocolClient
	detector     *Detector
	cycle        *Cycle
	helper       *guihelper.Helper
	sessionID    string
	graceTimer   *time.Timer
	disconnected bool
	lastActivity time.Time
}

// NewOrchestrator creates an orchestrator for one logical session
func NewOrchestrator(cfg *Config, dial DialFunc, logger *logging.Logger, bus events.EventBus) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		dial:    dial,
		machine: NewMachine(),
	}
	o.supervisor = NewSupervisor(cfg, o.retryConnect, logger.Sub("reconnect"), bus)
	return o
}

// Connect establishes a session on behalf of the user. Marks the
// session user-initiated so automatic reconnection is allowed.
func (o *Orchestrator) Connect() error {
	if err := o.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	o.supervisor.NoteManualConnect()
	return o.connect()
}

// retryConnect is invoked by the reconnect supervisor's timer
func (o *Orchestrator) retryConnect() {
	if err := o.connect(); err != nil {
		o.logger.Error("reconnect attempt failed", err)
	}
}

func (o *Orchestrator) connect() error {
	o.mu.Lock()
	if o.client != nil || o.dialing {
		o.mu.Unlock()
		return fmt.Errorf("session already connected")
	}
	o.dialing = true

	o.gen++
	gen := o.gen
	o.disconnected = false
	o.sessionID = uuid.NewString()
	sessionID := o.sessionID
	o.machine.Apply(EventConnectStarted)
	o.mu.Unlock()

	if o.bus != nil {
		o.bus.Publish(events.Event{
			Type:   events.EventTypeSessionConnecting,
			Source: "orchestrator",
			Data: map[string]interface{}{
				"session_id": sessionID,
				"server":     o.cfg.Server,
			},
		})
	}
	o.logger.Infof("connecting to %s as %s", o.cfg.Server, o.cfg.Username)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := o.dial(ctx, o.cfg.Server, o.cfg.Username, func(ev protocol.Event) {
		o.handleEvent(gen, ev)
	})

	o.mu.Lock()
	o.dialing = false
	stale := gen != o.gen
	o.mu.Unlock()

	if err != nil {
		if stale {
			// Torn down while dialing; the teardown already did the
			// disconnect bookkeeping
			return err
		}
		o.machine.Apply(EventDisconnected)
		o.logger.Error("connection failed", err)
		if o.bus != nil {
			o.bus.Publish(events.NewSessionDisconnectedEvent(sessionID, "connect_failed"))
		}
		o.supervisor.HandleDisconnect()
		return err
	}

	o.mu.Lock()
	if gen != o.gen {
		// Torn down while dialing, discard the cancelled client
		o.mu.Unlock()
		client.Close()
		return fmt.Errorf("session torn down during connect")
	}

	o.client = client
	o.machine.Apply(EventConnected)
	o.lastActivity = time.Now()

	sender := &clientSender{o: o, gen: gen}
	o.detector = NewDetector(o.cfg, sender, func(reason string) {
		o.handleDisconnect(gen, reason)
	}, o.logger.Sub("detector"), o.bus)
	o.cycle = NewCycle(o.cfg, sessionID, sender, sender, o.logger.Sub("cycle"), o.bus)
	o.helper = guihelper.New(sender, o.cycle.TracksWindow, o.logger.Sub("guihelper"))

	// Heartbeating before the session reaches Ready would read as a
	// dead connection; give login and spawn time to finish first.
	o.graceTimer = time.AfterFunc(o.cfg.DetectorGrace, func() {
		o.startDetector(gen)
	})
	o.mu.Unlock()

	if o.bus != nil {
		o.bus.Publish(events.NewSessionConnectedEvent(sessionID, o.cfg.Server))
	}
	o.logger.Info("connected, waiting for spawn")
	return nil
}

func (o *Orchestrator) startDetector(gen int) {
	o.mu.Lock()
	detector := o.detector
	current := gen == o.gen && detector != nil
	o.mu.Unlock()

	if current {
		detector.Start()
	}
}

// handleEvent routes one protocol event to the session components
func (o *Orchestrator) handleEvent(gen int, ev protocol.Event) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	detector := o.detector
	cycle := o.cycle
	helper := o.helper
	sessionID := o.sessionID
	o.lastActivity = time.Now()
	o.mu.Unlock()

	switch ev.Name {
	case protocol.EventSpawn:
		o.machine.Apply(EventReady)
		o.machine.SetCommandsAvailable(true)
		o.supervisor.NoteReady()
		o.logger.Info("spawned, session ready")
		if o.bus != nil {
			o.bus.Publish(events.NewSessionReadyEvent(sessionID))
		}

	case protocol.EventText:
		var pkt protocol.TextPacket
		if err := json.Unmarshal(ev.Payload, &pkt); err != nil {
			return
		}
		if detector != nil {
			detector.HandleText(pkt.Message)
		}
		o.logger.Debugf("chat: %s", pkt.Message)
		if o.bus != nil {
			o.bus.Publish(events.NewChatReceivedEvent(pkt.Message))
		}

	case protocol.EventDisconnect, protocol.EventKick:
		var pkt protocol.DisconnectPacket
		_ = json.Unmarshal(ev.Payload, &pkt)
		reason := ev.Name
		if pkt.Message != "" {
			reason = fmt.Sprintf("%s: %s", ev.Name, pkt.Message)
		}
		o.handleDisconnect(gen, reason)

	case protocol.EventClose:
		o.handleDisconnect(gen, "connection_closed")

	case protocol.EventError:
		var pkt protocol.ErrorPacket
		_ = json.Unmarshal(ev.Payload, &pkt)
		if protocol.IsDecodeNoise(pkt.Message) {
			o.logger.Debugf("ignoring decode noise: %s", pkt.Message)
			return
		}
		o.handleDisconnect(gen, fmt.Sprintf("transport_error: %s", pkt.Message))

	case protocol.EventContainerOpen:
		var pkt protocol.ContainerOpenPacket
		if err := json.Unmarshal(ev.Payload, &pkt); err != nil {
			return
		}
		o.machine.SetActiveWindow(pkt.WindowID)
		if cycle != nil {
			cycle.HandleContainerOpen(pkt.WindowID)
		}
		if helper != nil {
			helper.HandleContainerOpen(pkt.WindowID)
		}

	case protocol.EventInventoryContent:
		var pkt protocol.InventoryContentPacket
		if err := json.Unmarshal(ev.Payload, &pkt); err != nil {
			return
		}
		o.machine.SetInventoryReady(true)
		if cycle != nil {
			cycle.HandleInventoryContent(pkt.WindowID, pkt.Slots)
		}

	case protocol.EventContainerClose:
		var pkt protocol.ContainerClosePacket
		if err := json.Unmarshal(ev.Payload, &pkt); err != nil {
			return
		}
		if cycle != nil {
			cycle.HandleContainerClose(pkt.WindowID)
		}
		if helper != nil {
			helper.HandleContainerClose(pkt.WindowID)
		}
		o.machine.ClearActiveWindow(pkt.WindowID)

	default:
		// Generic packet: nothing to route, activity already noted
	}
}

// handleDisconnect is the single funnel for every fatal signal:
// kick, close, transport error, heartbeat failure. Idempotent per
// generation so racing signals cannot double-trigger reconnection.
func (o *Orchestrator) handleDisconnect(gen int, reason string) {
	o.mu.Lock()
	if gen != o.gen || o.disconnected {
		o.mu.Unlock()
		return
	}
	o.disconnected = true
	sessionID := o.sessionID
	o.teardownLocked()
	o.mu.Unlock()

	o.logger.Warnf("disconnected: %s", reason)
	if o.bus != nil {
		o.bus.Publish(events.NewSessionDisconnectedEvent(sessionID, reason))
	}

	o.supervisor.HandleDisconnect()
}

// Disconnect ends the session at the user's request. Suppresses
// automatic reconnection. Safe to call when already disconnected.
// A dial in flight counts as a session: the generation bump makes
// connect() discard the client when the dial completes.
func (o *Orchestrator) Disconnect() {
	o.supervisor.NoteManualDisconnect()

	o.mu.Lock()
	if o.client == nil && !o.dialing {
		o.mu.Unlock()
		return
	}
	o.disconnected = true
	sessionID := o.sessionID
	o.teardownLocked()
	o.mu.Unlock()

	o.logger.Info("disconnected by user")
	if o.bus != nil {
		o.bus.Publish(events.NewSessionDisconnectedEvent(sessionID, "user_disconnect"))
	}
}

// Shutdown performs the same idempotent teardown as a manual
// disconnect; invoked from signal handling
func (o *Orchestrator) Shutdown() {
	o.Disconnect()
}

// teardownLocked discards the current session generation: stop
// accepting new events, cancel timers, drop every handle. Does not
// wait for in-flight work.
func (o *Orchestrator) teardownLocked() {
	o.gen++
	if o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
	}
	if o.detector != nil {
		o.detector.Stop()
		o.detector = nil
	}
	if o.cycle != nil {
		o.cycle.Stop()
		o.cycle = nil
	}
	if o.helper != nil {
		o.helper.Stop()
		o.helper = nil
	}
	if o.client != nil {
		go o.client.Close()
		o.client = nil
	}
	o.machine.Reset()
}

// StartOrders begins the order automation on the current session
func (o *Orchestrator) StartOrders() error {
	o.mu.Lock()
	cycle := o.cycle
	o.mu.Unlock()

	if cycle == nil {
		return fmt.Errorf("not connected")
	}
	if !o.machine.CanSendCommand() {
		return fmt.Errorf("session not ready for commands")
	}
	return cycle.Start()
}

// StopOrders halts the order automation, leaving the session up
func (o *Orchestrator) StopOrders() {
	o.mu.Lock()
	cycle := o.cycle
	o.mu.Unlock()

	if cycle != nil {
		cycle.Stop()
	}
}

// Say sends a chat line or slash command on the current session
func (o *Orchestrator) Say(line string) error {
	o.mu.Lock()
	gen := o.gen
	o.mu.Unlock()

	sender := &clientSender{o: o, gen: gen}
	if !sender.CanSend() {
		return fmt.Errorf("session not ready for commands")
	}
	return sender.SendCommand(line)
}

// Snapshot is a point-in-time view of the session for status output
type Snapshot struct {
	SessionID         string
	State             State
	CycleRunning      bool
	CyclePhase        Phase
	CyclesCompleted   int
	ReconnectAttempts int
	LastActivity      time.Time
}

// Status returns a snapshot of the session
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	snap := Snapshot{
		SessionID:    o.sessionID,
		LastActivity: o.lastActivity,
	}
	cycle := o.cycle
	o.mu.Unlock()

	snap.State = o.machine.State()
	snap.ReconnectAttempts = o.supervisor.Attempts()
	if cycle != nil {
		snap.CycleRunning = cycle.Running()
		snap.CyclePhase = cycle.Phase()
		snap.CyclesCompleted = cycle.Count()
	}
	return snap
}

// clientSender binds command sending and packet writing to one session
// generation. A stale sender (from a torn-down generation) refuses to
// write instead of reaching a dead client.
type clientSender struct {
	o   *Orchestrator
	gen int
}

func (s *clientSender) CanSend() bool {
	return s.o.machine.CanSendCommand()
}

func (s *clientSender) SendCommand(line string) error {
	client, err := s.current()
	if err != nil {
		return err
	}
	return protocol.SendCommand(client, line)
}

func (s *clientSender) Write(name string, payload interface{}) error {
	client, err := s.current()
	if err != nil {
		return err
	}
	return client.Write(name, payload)
}

func (s *clientSender) current() (ProtocolClient, error) {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	if s.gen != s.o.gen || s.o.client == nil {
		return nil, fmt.Errorf("session generation no longer active")
	}
	return s.o.client, nil
}
