package session

import "sync"

// State is the coarse readiness of a session
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// TransitionEvent drives the connection state machine
type TransitionEvent int

const (
	EventConnectStarted TransitionEvent = iota // dial begun
	EventConnected                             // transport established
	EventReady                                 // spawn received, session usable
	EventDisconnected                          // any terminal signal
)

// Machine tracks session readiness. It is a pure state holder: no I/O,
// no failure modes, every transition succeeds. Repeating an event that
// would not move the state is a no-op.
type Machine struct {
	mu                sync.Mutex
	state             State
	commandsAvailable bool
	inventoryReady    bool
	activeWindowID    int
}

const noWindow = -1

// NewMachine creates a machine in the Disconnected state
func NewMachine() *Machine {
	return &Machine{
		state:          StateDisconnected,
		activeWindowID: noWindow,
	}
}

// Apply applies a transition event
func (m *Machine) Apply(ev TransitionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev {
	case EventConnectStarted:
		m.state = StateConnecting
	case EventConnected:
		m.state = StateConnected
	case EventReady:
		m.state = StateReady
	case EventDisconnected:
		m.resetLocked()
	}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CanSendCommand reports whether commands may be sent right now
func (m *Machine) CanSendCommand() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady && m.commandsAvailable
}

// SetCommandsAvailable sets the command-availability readiness flag
func (m *Machine) SetCommandsAvailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandsAvailable = v
}

// SetInventoryReady sets the inventory readiness flag
func (m *Machine) SetInventoryReady(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventoryReady = v
}

// InventoryReady reports whether inventory content has been observed
func (m *Machine) InventoryReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventoryReady
}

// SetActiveWindow records the id of the currently open server window
func (m *Machine) SetActiveWindow(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeWindowID = id
}

// ClearActiveWindow clears the active window if it matches id
func (m *Machine) ClearActiveWindow(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeWindowID == id {
		m.activeWindowID = noWindow
	}
}

// ActiveWindow returns the active window id, or false if none is open
func (m *Machine) ActiveWindow() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeWindowID, m.activeWindowID != noWindow
}

// Reset forces the machine back to Disconnected and clears all flags.
// Used before a reconnect attempt rebuilds the session stack.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Machine) resetLocked() {
	m.state = StateDisconnected
	m.commandsAvailable = false
	m.inventoryReady = false
	m.activeWindowID = noWindow
}
