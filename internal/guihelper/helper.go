// Package guihelper dismisses server menu windows that no other
// component owns. Some servers push promotional or navigation GUIs at
// the player; left open they block inventory interactions.
package guihelper

import (
	"sync"
	"time"

	"github.com/kethal/orderbot/internal/logging"
	"github.com/kethal/orderbot/internal/protocol"
)

const dismissDelay = 500 * time.Millisecond

// Helper closes unsolicited container windows shortly after they
// open. Windows claimed by the owns predicate (the order cycle's
// tracked window) are left alone.
type Helper struct {
	writer protocol.Writer
	owns   func(windowID int) bool
	logger *logging.Logger

	mu      sync.Mutex
	stopped bool
	pending map[int]*time.Timer
}

// New creates a helper. owns reports whether another component is
// handling the given window.
func New(writer protocol.Writer, owns func(windowID int) bool, logger *logging.Logger) *Helper {
	return &Helper{
		writer:  writer,
		owns:    owns,
		logger:  logger,
		pending: make(map[int]*time.Timer),
	}
}

// HandleContainerOpen schedules a dismissal for windows nobody owns
func (h *Helper) HandleContainerOpen(windowID int) {
	if h.owns != nil && h.owns(windowID) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	if _, exists := h.pending[windowID]; exists {
		return
	}

	h.pending[windowID] = time.AfterFunc(dismissDelay, func() {
		h.dismiss(windowID)
	})
}

// HandleContainerClose cancels a pending dismissal when the window
// closes on its own
func (h *Helper) HandleContainerClose(windowID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if timer, exists := h.pending[windowID]; exists {
		timer.Stop()
		delete(h.pending, windowID)
	}
}

func (h *Helper) dismiss(windowID int) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	delete(h.pending, windowID)
	// Re-check ownership: the cycle may have claimed the window
	// between open and the dismissal firing.
	if h.owns != nil && h.owns(windowID) {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.logger.Debugf("dismissing unowned window %d", windowID)
	if err := h.writer.Write(protocol.PacketContainerClose, protocol.ContainerClosePacket{WindowID: windowID}); err != nil {
		h.logger.Error("failed to dismiss window", err)
	}
}

// Stop cancels all pending dismissals. Safe to call multiple times.
func (h *Helper) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for id, timer := range h.pending {
		timer.Stop()
		delete(h.pending, id)
	}
}
