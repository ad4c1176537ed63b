package session

import (
	"fmt"
	"time"
)

// Config holds every tunable of a session. It is treated as immutable
// once a session is running; a reconnect rebuilds components against
// the same Config.
type Config struct {
	// Connection
	Server   string
	Username string

	// Heartbeat
	PingInterval time.Duration
	PingTimeout  time.Duration

	// Reconnect
	AutoReconnect        bool
	ReconnectBaseDelay   time.Duration
	ReconnectBackoff     float64
	ReconnectMaxDelay    time.Duration
	ReconnectJitter      time.Duration
	MaxReconnectAttempts int

	// Order cycle
	OrderCommand string
	TargetSlots  []int
	TakeSlot     int
	CycleDelay   time.Duration
	MaxCycles    int
	DropDelay    time.Duration
	GuiTimeout   time.Duration

	// Delay between connecting and starting the disconnect detector,
	// so the session can reach Ready before the first heartbeat.
	DetectorGrace time.Duration
}

// ApplyDefaults fills in zero-valued fields with sensible defaults
func (c *Config) ApplyDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 15 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = 5 * time.Second
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 1.5
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 60 * time.Second
	}
	if c.ReconnectJitter < 0 {
		c.ReconnectJitter = 0
	} else if c.ReconnectJitter == 0 {
		c.ReconnectJitter = time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.CycleDelay <= 0 {
		c.CycleDelay = 5 * time.Second
	}
	if c.DropDelay <= 0 {
		c.DropDelay = 100 * time.Millisecond
	}
	if c.GuiTimeout <= 0 {
		c.GuiTimeout = 10 * time.Second
	}
	if c.DetectorGrace <= 0 {
		c.DetectorGrace = 30 * time.Second
	}
}

// Validate rejects configurations the automation cannot run with.
// Called synchronously before any session state is created.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// ValidateOrders checks the order-cycle settings. Separate from
// Validate because a session can connect without running orders.
func (c *Config) ValidateOrders() error {
	if c.OrderCommand == "" {
		return fmt.Errorf("order command is required")
	}
	if len(c.TargetSlots) == 0 {
		return fmt.Errorf("at least one target slot is required")
	}
	for _, slot := range c.TargetSlots {
		if slot < 0 || slot > 8 {
			return fmt.Errorf("target slot %d outside hotbar range 0-8", slot)
		}
	}
	if c.TakeSlot < 0 {
		return fmt.Errorf("take slot %d is invalid", c.TakeSlot)
	}
	return nil
}
