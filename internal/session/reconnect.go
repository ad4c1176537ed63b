package session

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kethal/orderbot/internal/events"
	"github.com/kethal/orderbot/internal/logging"
)

// Supervisor decides whether and when to reattempt a connection after
// a disconnect. It only retries sessions a human asked for: the
// user-initiated flag is set on manual connect and cleared on manual
// disconnect or when the attempt budget runs out.
type Supervisor struct {
	cfg     *Config
	connect func()
	logger  *logging.Logger
	bus     events.EventBus

	mu            sync.Mutex
	attempts      int
	userInitiated bool
	timer         *time.Timer
	rng           *rand.Rand
}

// NewSupervisor creates a supervisor that calls connect when a retry
// is due
func NewSupervisor(cfg *Config, connect func(), logger *logging.Logger, bus events.EventBus) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		connect: connect,
		logger:  logger,
		bus:     bus,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NoteManualConnect records that a human requested this session. Resets
// the attempt counter so a fresh manual connect gets the full budget.
func (s *Supervisor) NoteManualConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInitiated = true
	s.attempts = 0
	s.cancelTimerLocked()
}

// NoteReady resets the attempt counter after a fully successful
// Ready transition
func (s *Supervisor) NoteReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
}

// NoteManualDisconnect clears the user-initiated flag and any pending
// retry, suppressing further automatic reconnection
func (s *Supervisor) NoteManualDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInitiated = false
	s.cancelTimerLocked()
}

// Attempts returns the current attempt counter
func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// HandleDisconnect schedules a reconnect attempt if policy allows.
// Only one retry timer exists at a time; scheduling cancels any prior
// pending timer.
func (s *Supervisor) HandleDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.userInitiated {
		s.logger.Debug("no user-initiated session, not reconnecting")
		return
	}
	if !s.cfg.AutoReconnect {
		s.logger.Info("auto-reconnect disabled")
		return
	}

	s.attempts++
	if s.attempts > s.cfg.MaxReconnectAttempts {
		attempts := s.attempts - 1
		s.userInitiated = false
		s.attempts = 0
		s.logger.Warnf("giving up after %d reconnect attempts, manual connect required", attempts)
		if s.bus != nil {
			s.bus.Publish(events.NewReconnectExhaustedEvent(attempts))
		}
		return
	}

	delay := s.delayForAttempt(s.attempts) + s.jitter()
	s.cancelTimerLocked()
	s.timer = time.AfterFunc(delay, s.connect)

	s.logger.InfoWithFields("reconnect scheduled", map[string]interface{}{
		"attempt": s.attempts,
		"max":     s.cfg.MaxReconnectAttempts,
		"delay":   delay.Round(time.Millisecond),
	})
	if s.bus != nil {
		s.bus.Publish(events.NewReconnectScheduledEvent(s.attempts, delay))
	}
}

// delayForAttempt computes the backoff delay for attempt n (1-indexed),
// excluding jitter
func (s *Supervisor) delayForAttempt(n int) time.Duration {
	base := float64(s.cfg.ReconnectBaseDelay)
	d := base * math.Pow(s.cfg.ReconnectBackoff, float64(n-1))
	capped := math.Min(d, float64(s.cfg.ReconnectMaxDelay))
	return time.Duration(capped)
}

func (s *Supervisor) jitter() time.Duration {
	if s.cfg.ReconnectJitter <= 0 {
		return 0
	}
	return time.Duration(s.rng.Int63n(int64(s.cfg.ReconnectJitter)))
}

func (s *Supervisor) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
