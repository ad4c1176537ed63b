package session

import (
	"strings"
	"sync"
	"time"

	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/logging"
)

// Disconnect reasons synthesized by the detector
const (
	ReasonHeartbeatTimeout    = "heartbeat_timeout"
	ReasonHeartbeatSendFailed = "heartbeat_send_failed"
)

const (
	heartbeatCommand = "/ping"

	// Retry delay when the command sender is not usable yet
	senderRetryDelay = 5 * time.Second
)

// CommandSender sends a line of input to the server. CanSend reports
// whether the session is ready for commands right now.
type CommandSender interface {
	SendCommand(line string) error
	CanSend() bool
}

// DisconnectCallback is invoked at most once per detected failure
type DisconnectCallback func(reason string)

// Detector finds silently dead connections: the transport is open but
// the server has stopped answering. It periodically sends a heartbeat
// command and requires a matching chat response within a timeout.
//
// Response matching is heuristic (substring match on the chat text
// while a heartbeat is outstanding); the gateway exposes no
// request/response correlation id for commands.
type Detector struct {
	sender       CommandSender
	interval     time.Duration
	timeout      time.Duration
	onDisconnect DisconnectCallback
	logger       *logging.Logger
	bus          events.EventBus

	mu             sync.Mutex
	running        bool
	fired          bool
	awaiting       bool
	sentAt         time.Time
	heartbeatTimer *time.Timer
	timeoutTimer   *time.Timer
	gen            int
}

// NewDetector creates a detector bound to one session generation
func NewDetector(cfg *Config, sender CommandSender, onDisconnect DisconnectCallback, logger *logging.Logger, bus events.EventBus) *Detector {
	return &Detector{
		sender:       sender,
		interval:     cfg.PingInterval,
		timeout:      cfg.PingTimeout,
		onDisconnect: onDisconnect,
		logger:       logger,
		bus:          bus,
	}
}

// Start schedules the first heartbeat after the normal interval.
// Starting an already-running detector is a no-op.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.fired = false
	d.awaiting = false
	d.gen++
	d.scheduleLocked(d.interval)
	d.logger.Debugf("detector started, first heartbeat in %v", d.interval)
}

// Stop cancels all pending timers and clears the awaiting flag. Safe
// to call from any state, any number of times.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.running = false
	d.awaiting = false
	d.cancelTimersLocked()
}

// Awaiting reports whether a heartbeat is currently outstanding
func (d *Detector) Awaiting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.awaiting
}

func (d *Detector) scheduleLocked(delay time.Duration) {
	gen := d.gen
	d.heartbeatTimer = time.AfterFunc(delay, func() {
		d.sendHeartbeat(gen)
	})
}

func (d *Detector) cancelTimersLocked() {
	if d.heartbeatTimer != nil {
		d.heartbeatTimer.Stop()
		d.heartbeatTimer = nil
	}
	if d.timeoutTimer != nil {
		d.timeoutTimer.Stop()
		d.timeoutTimer = nil
	}
}

func (d *Detector) sendHeartbeat(gen int) {
	d.mu.Lock()

	if !d.running || gen != d.gen {
		d.mu.Unlock()
		return
	}

	// Never send while one is outstanding
	if d.awaiting {
		d.mu.Unlock()
		return
	}

	if d.sender == nil || !d.sender.CanSend() {
		d.logger.Debug("command sender unavailable, deferring heartbeat")
		d.scheduleLocked(senderRetryDelay)
		d.mu.Unlock()
		return
	}

	d.awaiting = true
	d.sentAt = time.Now()
	sender := d.sender
	d.mu.Unlock()

	if err := sender.SendCommand(heartbeatCommand); err != nil {
		d.logger.Error("heartbeat send failed", err)
		d.fail(gen, ReasonHeartbeatSendFailed)
		return
	}

	d.mu.Lock()
	if !d.running || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timeoutTimer = time.AfterFunc(d.timeout, func() {
		d.onTimeout(gen)
	})
	d.mu.Unlock()
}

func (d *Detector) onTimeout(gen int) {
	d.mu.Lock()
	if !d.running || gen != d.gen || !d.awaiting {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.logger.Warnf("no heartbeat response within %v", d.timeout)
	d.fail(gen, ReasonHeartbeatTimeout)
}

// fail stops the detector and reports the failure exactly once
func (d *Detector) fail(gen int, reason string) {
	d.mu.Lock()
	if gen != d.gen || d.fired || !d.running {
		d.mu.Unlock()
		return
	}
	d.fired = true
	d.running = false
	d.awaiting = false
	d.cancelTimersLocked()
	cb := d.onDisconnect
	d.mu.Unlock()

	if cb != nil {
		cb(reason)
	}
}

// HandleText feeds an inbound chat message to the response matcher.
// A message only counts while a heartbeat is outstanding; anything
// else has no observable effect.
func (d *Detector) HandleText(message string) {
	d.mu.Lock()

	if !d.running || !d.awaiting || !isHeartbeatResponse(message) {
		d.mu.Unlock()
		return
	}

	latency := time.Since(d.sentAt)
	d.awaiting = false
	if d.timeoutTimer != nil {
		d.timeoutTimer.Stop()
		d.timeoutTimer = nil
	}
	d.scheduleLocked(d.interval)
	d.mu.Unlock()

	d.logger.Debugf("heartbeat round trip %v", latency)
	if d.bus != nil {
		d.bus.Publish(events.NewHeartbeatLatencyEvent(latency))
	}
}

// isHeartbeatResponse matches chat that textually signals a ping or
// latency reply. Coincidental chat containing the same substrings is
// indistinguishable; the awaiting gate in HandleText bounds the damage.
func isHeartbeatResponse(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "pong") ||
		strings.Contains(lower, "ping") ||
		strings.Contains(lower, "ms")
}
