package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/logging"
	"github.com/kethal/orderbot/internal/protocol"
)

// Phase is the current step of the order cycle
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOrdering
	PhaseWaitingForGui
	PhaseTaking
	PhaseDropping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOrdering:
		return "ordering"
	case PhaseWaitingForGui:
		return "waiting_for_gui"
	case PhaseTaking:
		return "taking"
	case PhaseDropping:
		return "dropping"
	default:
		return "unknown"
	}
}

const (
	// Delay between selecting a hotbar slot and dropping it; the
	// server applies the selection asynchronously.
	hotbarSelectDelay = 50 * time.Millisecond

	// How long to wait for the server to acknowledge the take with a
	// container_close before closing the window locally.
	containerCloseFallback = 2 * time.Second
)

// Cycle runs the repeating order sequence: send the order command,
// wait for the server GUI, take the item from the configured slot,
// then drop the configured hotbar slots in order. Phases advance
// strictly forward within an iteration; a timeout aborts back to Idle
// and the next iteration is scheduled.
type Cycle struct {
	cfg       *Config
	sender    CommandSender
	writer    protocol.Writer
	logger    *logging.Logger
	bus       events.EventBus
	sessionID string

	mu        sync.Mutex
	running   bool
	phase     Phase
	count     int
	windowID  int
	slots     []protocol.Slot
	gen       int
	done      chan struct{}
	guiTimer  *time.Timer
	takeTimer *time.Timer
	nextTimer *time.Timer
}

// NewCycle creates a cycle bound to one session generation
func NewCycle(cfg *Config, sessionID string, sender CommandSender, writer protocol.Writer, logger *logging.Logger, bus events.EventBus) *Cycle {
	return &Cycle{
		cfg:       cfg,
		sessionID: sessionID,
		sender:    sender,
		writer:    writer,
		logger:    logger,
		bus:       bus,
		windowID:  noWindow,
	}
}

// Start begins the automation from cycle zero
func (c *Cycle) Start() error {
	if err := c.cfg.ValidateOrders(); err != nil {
		return fmt.Errorf("invalid order configuration: %w", err)
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("order cycle already running")
	}
	c.running = true
	c.count = 0
	c.gen++
	c.done = make(chan struct{})
	gen := c.gen
	c.mu.Unlock()

	c.logger.Infof("order automation started (max cycles: %d)", c.cfg.MaxCycles)
	c.beginCycle(gen)
	return nil
}

// Stop halts the automation from any phase. Pending timers are
// cancelled and a drop sequence in flight skips its remaining slots.
// Safe to call multiple times.
func (c *Cycle) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running && c.done == nil {
		return
	}
	c.running = false
	c.gen++
	c.phase = PhaseIdle
	c.windowID = noWindow
	c.slots = nil
	c.cancelTimersLocked()
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// Running reports whether the automation is active
func (c *Cycle) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Phase returns the current phase
func (c *Cycle) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Count returns the number of completed cycles
func (c *Cycle) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// TracksWindow reports whether the cycle currently owns windowID.
// Other container activity (server menus handled elsewhere) must not
// be routed into the cycle.
func (c *Cycle) TracksWindow(windowID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowID != noWindow && c.windowID == windowID
}

func (c *Cycle) cancelTimersLocked() {
	if c.guiTimer != nil {
		c.guiTimer.Stop()
		c.guiTimer = nil
	}
	if c.takeTimer != nil {
		c.takeTimer.Stop()
		c.takeTimer = nil
	}
	if c.nextTimer != nil {
		c.nextTimer.Stop()
		c.nextTimer = nil
	}
}

// beginCycle runs the Ordering phase of one iteration
func (c *Cycle) beginCycle(gen int) {
	c.mu.Lock()

	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}

	c.phase = PhaseOrdering
	c.windowID = noWindow
	c.slots = nil
	number := c.count + 1
	c.mu.Unlock()

	c.logger.Infof("cycle %d: sending order command", number)
	if c.bus != nil {
		c.bus.Publish(events.NewCycleStartedEvent(c.sessionID, number))
	}

	if err := c.sender.SendCommand(c.cfg.OrderCommand); err != nil {
		c.logger.Error("order command send failed", err)
		c.abortIteration(gen, "order_send_failed")
		return
	}

	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseWaitingForGui
	c.guiTimer = time.AfterFunc(c.cfg.GuiTimeout, func() {
		c.onGuiTimeout(gen)
	})
	c.mu.Unlock()
}

func (c *Cycle) onGuiTimeout(gen int) {
	c.mu.Lock()
	if !c.running || gen != c.gen || c.phase != PhaseWaitingForGui {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Warnf("server GUI did not open within %v", c.cfg.GuiTimeout)
	c.abortIteration(gen, "gui_timeout")
}

// HandleContainerOpen records the window id of the order GUI. The
// phase does not advance until the content for the same window
// arrives.
func (c *Cycle) HandleContainerOpen(windowID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.phase != PhaseWaitingForGui || c.windowID != noWindow {
		return
	}
	c.windowID = windowID
	c.logger.Debugf("order GUI opened, window %d", windowID)
}

// HandleInventoryContent stores the slot snapshot and advances to
// Taking. Content for any other window is ignored.
func (c *Cycle) HandleInventoryContent(windowID int, slots []protocol.Slot) {
	c.mu.Lock()

	if !c.running || c.phase != PhaseWaitingForGui || windowID != c.windowID {
		c.mu.Unlock()
		return
	}

	gen := c.gen
	c.slots = slots
	c.phase = PhaseTaking
	if c.guiTimer != nil {
		c.guiTimer.Stop()
		c.guiTimer = nil
	}
	window := c.windowID
	c.mu.Unlock()

	c.logger.Debugf("window %d content received (%d slots), taking slot %d", windowID, len(slots), c.cfg.TakeSlot)

	if err := c.writer.Write(protocol.PacketItemStackRequest, protocol.ItemStackRequestPacket{
		WindowID: window,
		Slot:     c.cfg.TakeSlot,
	}); err != nil {
		c.logger.Error("take request send failed", err)
		c.abortIteration(gen, "take_send_failed")
		return
	}

	c.mu.Lock()
	if !c.running || gen != c.gen || c.phase != PhaseTaking {
		c.mu.Unlock()
		return
	}
	// Some servers grant the item but never send container_close.
	// Close locally if no acknowledgment arrives.
	c.takeTimer = time.AfterFunc(containerCloseFallback, func() {
		c.onCloseFallback(gen)
	})
	c.mu.Unlock()
}

func (c *Cycle) onCloseFallback(gen int) {
	c.mu.Lock()
	if !c.running || gen != c.gen || c.phase != PhaseTaking {
		c.mu.Unlock()
		return
	}
	window := c.windowID
	c.windowID = noWindow
	c.phase = PhaseDropping
	done := c.done
	c.mu.Unlock()

	c.logger.Debugf("no close acknowledgment for window %d, closing locally", window)
	if err := c.writer.Write(protocol.PacketContainerClose, protocol.ContainerClosePacket{WindowID: window}); err != nil {
		c.logger.Error("local container close failed", err)
	}

	go c.runDropSequence(gen, done)
}

// HandleContainerClose advances to Dropping when the server closes the
// tracked window. Closes for any other window are ignored.
func (c *Cycle) HandleContainerClose(windowID int) {
	c.mu.Lock()

	if !c.running || c.phase != PhaseTaking || windowID != c.windowID {
		c.mu.Unlock()
		return
	}

	gen := c.gen
	c.windowID = noWindow
	c.phase = PhaseDropping
	if c.takeTimer != nil {
		c.takeTimer.Stop()
		c.takeTimer = nil
	}
	done := c.done
	c.mu.Unlock()

	c.logger.Debugf("window %d closed, starting drop sequence", windowID)
	go c.runDropSequence(gen, done)
}

// runDropSequence drops each configured hotbar slot in list order.
// Slot selection must land before the drop it targets, so the sequence
// is strictly sequential with a wait between the two packets.
func (c *Cycle) runDropSequence(gen int, done chan struct{}) {
	dropped := 0

	for _, slot := range c.cfg.TargetSlots {
		if !c.droppingCurrent(gen) {
			return
		}

		if err := c.writer.Write(protocol.PacketPlayerHotbar, protocol.PlayerHotbarPacket{Slot: slot}); err != nil {
			c.logger.Error("hotbar select send failed", err)
			c.abortIteration(gen, "drop_send_failed")
			return
		}

		if !c.wait(hotbarSelectDelay, done) {
			return
		}

		if err := c.writer.Write(protocol.PacketPlayerAction, protocol.PlayerActionPacket{Action: protocol.ActionDropStack}); err != nil {
			c.logger.Error("drop action send failed", err)
			c.abortIteration(gen, "drop_send_failed")
			return
		}
		dropped++

		if !c.wait(c.cfg.DropDelay, done) {
			return
		}
	}

	c.completeCycle(gen, dropped)
}

func (c *Cycle) droppingCurrent(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && gen == c.gen && c.phase == PhaseDropping
}

// wait sleeps for d, returning false if the cycle was stopped
func (c *Cycle) wait(d time.Duration, done chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}

// completeCycle finishes an iteration and schedules the next one,
// unless the cycle limit has been reached
func (c *Cycle) completeCycle(gen int, dropped int) {
	c.mu.Lock()

	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}

	c.count++
	c.phase = PhaseIdle
	number := c.count
	finished := c.cfg.MaxCycles > 0 && c.count >= c.cfg.MaxCycles
	if !finished {
		c.nextTimer = time.AfterFunc(c.cfg.CycleDelay, func() {
			c.beginCycle(gen)
		})
	} else {
		c.running = false
		c.cancelTimersLocked()
		if c.done != nil {
			close(c.done)
			c.done = nil
		}
	}
	c.mu.Unlock()

	c.logger.Infof("cycle %d complete (%d slots dropped)", number, dropped)
	if c.bus != nil {
		c.bus.Publish(events.NewCycleCompletedEvent(c.sessionID, number, dropped))
	}

	if finished {
		c.logger.Infof("cycle limit %d reached, automation stopped", c.cfg.MaxCycles)
		if c.bus != nil {
			c.bus.Publish(events.Event{
				Type:   events.EventTypeOrdersStopped,
				Source: "cycle",
				Data: map[string]interface{}{
					"session_id": c.sessionID,
					"cycles_run": number,
				},
			})
		}
	}
}

// abortIteration gives up on the current iteration and schedules the
// next one. The cycle counter is not advanced; automation failures
// never escalate to a disconnect.
func (c *Cycle) abortIteration(gen int, reason string) {
	c.mu.Lock()

	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}

	number := c.count + 1
	c.phase = PhaseIdle
	c.windowID = noWindow
	c.slots = nil
	c.cancelTimersLocked()
	c.nextTimer = time.AfterFunc(c.cfg.CycleDelay, func() {
		c.beginCycle(gen)
	})
	c.mu.Unlock()

	c.logger.Warnf("cycle %d aborted (%s), next attempt in %v", number, reason, c.cfg.CycleDelay)
	if c.bus != nil {
		c.bus.Publish(events.NewCycleAbortedEvent(c.sessionID, number, reason))
	}
}
