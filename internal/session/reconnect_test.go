package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger("test").SetMinLevel(logging.LogLevelError)
}

func reconnectConfig() *Config {
	cfg := &Config{
		Server:               "wss://example.test/gateway",
		Username:             "tester",
		AutoReconnect:        true,
		ReconnectBaseDelay:   5 * time.Second,
		ReconnectBackoff:     1.5,
		ReconnectMaxDelay:    60 * time.Second,
		ReconnectJitter:      -1, // disable jitter for deterministic delays
		MaxReconnectAttempts: 10,
	}
	return cfg
}

func TestBackoffDelays(t *testing.T) {
	s := NewSupervisor(reconnectConfig(), func() {}, testLogger(), nil)

	expected := []time.Duration{
		5000 * time.Millisecond,
		7500 * time.Millisecond,
		11250 * time.Millisecond,
		16875 * time.Millisecond,
		25312500 * time.Microsecond,
	}

	for i, want := range expected {
		got := s.delayForAttempt(i + 1)
		if got != want {
			t.Errorf("Attempt %d: expected delay %v, got %v", i+1, want, got)
		}
	}
}

func TestBackoffDelaysMonotonicAndCapped(t *testing.T) {
	s := NewSupervisor(reconnectConfig(), func() {}, testLogger(), nil)

	prev := time.Duration(0)
	for n := 1; n <= 20; n++ {
		d := s.delayForAttempt(n)
		if d < prev {
			t.Errorf("Delay for attempt %d (%v) is shorter than attempt %d (%v)", n, d, n-1, prev)
		}
		if d > 60*time.Second {
			t.Errorf("Delay for attempt %d (%v) exceeds the cap", n, d)
		}
		prev = d
	}

	if s.delayForAttempt(20) != 60*time.Second {
		t.Errorf("Expected late attempts to sit at the cap, got %v", s.delayForAttempt(20))
	}
}

func TestJitterBounded(t *testing.T) {
	cfg := reconnectConfig()
	cfg.ReconnectJitter = time.Second
	s := NewSupervisor(cfg, func() {}, testLogger(), nil)

	for i := 0; i < 100; i++ {
		j := s.jitter()
		if j < 0 || j >= time.Second {
			t.Fatalf("Jitter %v outside [0, 1s)", j)
		}
	}
}

func TestHandleDisconnectSchedulesRetry(t *testing.T) {
	cfg := reconnectConfig()
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 50 * time.Millisecond

	var calls int32
	connected := make(chan struct{}, 1)
	s := NewSupervisor(cfg, func() {
		atomic.AddInt32(&calls, 1)
		connected <- struct{}{}
	}, testLogger(), nil)

	s.NoteManualConnect()
	s.HandleDisconnect()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("Retry did not fire")
	}

	if s.Attempts() != 1 {
		t.Errorf("Expected 1 attempt, got %d", s.Attempts())
	}
}

func TestNoRetryWithoutManualConnect(t *testing.T) {
	cfg := reconnectConfig()
	cfg.ReconnectBaseDelay = 5 * time.Millisecond

	var calls int32
	s := NewSupervisor(cfg, func() {
		atomic.AddInt32(&calls, 1)
	}, testLogger(), nil)

	// No NoteManualConnect: this session was never user-initiated
	s.HandleDisconnect()
	time.Sleep(50 * time.Millisecond)

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("Expected no retry, got %d", n)
	}
	if s.Attempts() != 0 {
		t.Errorf("Expected attempt counter untouched, got %d", s.Attempts())
	}
}

func TestNoRetryAfterManualDisconnect(t *testing.T) {
	cfg := reconnectConfig()
	cfg.ReconnectBaseDelay = 5 * time.Millisecond

	var calls int32
	s := NewSupervisor(cfg, func() {
		atomic.AddInt32(&calls, 1)
	}, testLogger(), nil)

	s.NoteManualConnect()
	s.NoteManualDisconnect()
	s.HandleDisconnect()
	time.Sleep(50 * time.Millisecond)

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("Expected no retry after manual disconnect, got %d", n)
	}
}

func TestNoRetryWhenAutoReconnectDisabled(t *testing.T) {
	cfg := reconnectConfig()
	cfg.AutoReconnect = false
	cfg.ReconnectBaseDelay = 5 * time.Millisecond

	var calls int32
	s := NewSupervisor(cfg, func() {
		atomic.AddInt32(&calls, 1)
	}, testLogger(), nil)

	s.NoteManualConnect()
	s.HandleDisconnect()
	time.Sleep(50 * time.Millisecond)

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("Expected no retry with auto-reconnect off, got %d", n)
	}
}

func TestAttemptBudgetExhaustion(t *testing.T) {
	cfg := reconnectConfig()
	cfg.MaxReconnectAttempts = 3
	cfg.ReconnectBaseDelay = time.Hour // retries never actually fire

	bus := events.NewEventBus(16)
	defer bus.Stop()

	exhausted := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeReconnectExhausted, func(ev events.Event) {
		exhausted <- ev
	})

	s := NewSupervisor(cfg, func() {}, testLogger(), bus)
	s.NoteManualConnect()

	for i := 0; i < 4; i++ {
		s.HandleDisconnect()
	}

	var ev events.Event
	select {
	case ev = <-exhausted:
	case <-time.After(time.Second):
		t.Fatal("Exhaustion event was not published")
	}

	if attempts, _ := ev.Data["attempts"].(int); attempts != 3 {
		t.Errorf("Expected 3 attempts reported, got %v", ev.Data["attempts"])
	}

	// The budget wipe also clears the user-initiated flag, so further
	// disconnects must not schedule anything
	s.HandleDisconnect()
	if s.Attempts() != 0 {
		t.Errorf("Expected attempts reset after exhaustion, got %d", s.Attempts())
	}
}

func TestNoteReadyResetsAttempts(t *testing.T) {
	cfg := reconnectConfig()
	cfg.ReconnectBaseDelay = time.Hour

	s := NewSupervisor(cfg, func() {}, testLogger(), nil)
	s.NoteManualConnect()
	s.HandleDisconnect()
	s.HandleDisconnect()

	if s.Attempts() != 2 {
		t.Fatalf("Expected 2 attempts, got %d", s.Attempts())
	}

	s.NoteReady()
	if s.Attempts() != 0 {
		t.Errorf("Expected attempts reset on ready, got %d", s.Attempts())
	}
}
