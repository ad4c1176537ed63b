package guihelper

import (
	"sync"
	"testing"
	"time"

	"github.com/kethal/orderbot/internal/logging"
	"github.com/kethal/orderbot/internal/protocol"
)

type recordingWriter struct {
	mu     sync.Mutex
	closed []int
}

func (w *recordingWriter) Write(name string, payload interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if name == protocol.PacketContainerClose {
		if pkt, ok := payload.(protocol.ContainerClosePacket); ok {
			w.closed = append(w.closed, pkt.WindowID)
		}
	}
	return nil
}

func (w *recordingWriter) closedWindows() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, len(w.closed))
	copy(out, w.closed)
	return out
}

func testLogger() *logging.Logger {
	return logging.NewLogger("test").SetMinLevel(logging.LogLevelError)
}

func TestDismissesUnownedWindow(t *testing.T) {
	writer := &recordingWriter{}
	h := New(writer, func(int) bool { return false }, testLogger())
	defer h.Stop()

	h.HandleContainerOpen(5)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if closed := writer.closedWindows(); len(closed) == 1 && closed[0] == 5 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Unowned window was never dismissed")
}

func TestLeavesOwnedWindowAlone(t *testing.T) {
	writer := &recordingWriter{}
	h := New(writer, func(id int) bool { return id == 7 }, testLogger())
	defer h.Stop()

	h.HandleContainerOpen(7)
	time.Sleep(700 * time.Millisecond)

	if closed := writer.closedWindows(); len(closed) != 0 {
		t.Errorf("Owned window was dismissed: %v", closed)
	}
}

func TestOwnershipRecheckedAtDismissal(t *testing.T) {
	writer := &recordingWriter{}

	var mu sync.Mutex
	owned := false
	h := New(writer, func(id int) bool {
		mu.Lock()
		defer mu.Unlock()
		return owned
	}, testLogger())
	defer h.Stop()

	h.HandleContainerOpen(4)

	// Another component claims the window before the dismissal fires
	mu.Lock()
	owned = true
	mu.Unlock()

	time.Sleep(700 * time.Millisecond)
	if closed := writer.closedWindows(); len(closed) != 0 {
		t.Errorf("Claimed window was dismissed: %v", closed)
	}
}

func TestServerCloseCancelsDismissal(t *testing.T) {
	writer := &recordingWriter{}
	h := New(writer, func(int) bool { return false }, testLogger())
	defer h.Stop()

	h.HandleContainerOpen(5)
	h.HandleContainerClose(5)

	time.Sleep(700 * time.Millisecond)
	if closed := writer.closedWindows(); len(closed) != 0 {
		t.Errorf("Closed window was dismissed again: %v", closed)
	}
}

func TestStopCancelsPendingDismissals(t *testing.T) {
	writer := &recordingWriter{}
	h := New(writer, func(int) bool { return false }, testLogger())

	h.HandleContainerOpen(1)
	h.HandleContainerOpen(2)
	h.Stop()

	time.Sleep(700 * time.Millisecond)
	if closed := writer.closedWindows(); len(closed) != 0 {
		t.Errorf("Stopped helper dismissed windows: %v", closed)
	}

	// Opens after stop are ignored
	h.HandleContainerOpen(3)
	time.Sleep(700 * time.Millisecond)
	if closed := writer.closedWindows(); len(closed) != 0 {
		t.Errorf("Stopped helper dismissed a late window: %v", closed)
	}
}
