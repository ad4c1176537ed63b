package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/kethal/orderbot/internal/session"
)

// AppConfig bundles the session configuration with process-level
// settings that do not belong to a session
type AppConfig struct {
	Session      session.Config
	LogLevel     string
	DatabasePath string
}

// LoadFromINI loads configuration from a Settings.ini file
func LoadFromINI(path string) (*AppConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	app := &AppConfig{}

	connection := cfg.Section("Connection")
	app.Session.Server = connection.Key("Server").MustString("")
	app.Session.Username = connection.Key("Username").MustString("")

	heartbeat := cfg.Section("Heartbeat")
	app.Session.PingInterval = msKey(heartbeat, "PingIntervalMs", 30000)
	app.Session.PingTimeout = msKey(heartbeat, "PingTimeoutMs", 15000)
	app.Session.DetectorGrace = msKey(heartbeat, "StartGraceMs", 30000)

	reconnect := cfg.Section("Reconnect")
	app.Session.AutoReconnect = reconnect.Key("AutoReconnect").MustBool(true)
	app.Session.ReconnectBaseDelay = msKey(reconnect, "BaseDelayMs", 5000)
	app.Session.ReconnectBackoff = reconnect.Key("BackoffFactor").MustFloat64(1.5)
	app.Session.ReconnectMaxDelay = msKey(reconnect, "MaxDelayMs", 60000)
	app.Session.ReconnectJitter = msKey(reconnect, "JitterMs", 1000)
	app.Session.MaxReconnectAttempts = reconnect.Key("MaxAttempts").MustInt(10)

	orders := cfg.Section("Orders")
	app.Session.OrderCommand = orders.Key("OrderCommand").MustString("")
	app.Session.TakeSlot = orders.Key("TakeSlot").MustInt(13)
	app.Session.CycleDelay = msKey(orders, "CycleDelayMs", 5000)
	app.Session.MaxCycles = orders.Key("MaxCycles").MustInt(0)
	app.Session.DropDelay = msKey(orders, "DropDelayMs", 100)
	app.Session.GuiTimeout = msKey(orders, "GuiTimeoutMs", 10000)

	slotsStr := orders.Key("TargetSlots").MustString("0,1,2")
	slots, err := parseSlotList(slotsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TargetSlots: %w", err)
	}
	app.Session.TargetSlots = slots

	logging := cfg.Section("Logging")
	app.LogLevel = logging.Key("LogLevel").MustString("INFO")

	storage := cfg.Section("Storage")
	app.DatabasePath = storage.Key("DatabasePath").MustString("orderbot.db")

	app.Session.ApplyDefaults()

	return app, nil
}

// NewDefaultConfig creates a config with default values
func NewDefaultConfig() *AppConfig {
	app := &AppConfig{
		LogLevel:     "INFO",
		DatabasePath: "orderbot.db",
	}
	app.Session.TargetSlots = []int{0, 1, 2}
	app.Session.TakeSlot = 13
	app.Session.AutoReconnect = true
	app.Session.ApplyDefaults()
	return app
}

func msKey(section *ini.Section, name string, def int) time.Duration {
	return time.Duration(section.Key(name).MustInt(def)) * time.Millisecond
}

// parseSlotList parses a comma-separated list of slot indices
func parseSlotList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	slots := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slot, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("slot %q is not a number", part)
		}
		slots = append(slots, slot)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots specified")
	}
	return slots, nil
}
