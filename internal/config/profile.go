package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kethal/orderbot/internal/session"
)

// OrderProfile is a YAML definition of one order routine. Profiles
// override the [Orders] section of Settings.ini, so different items
// can be ordered without editing the main config.
type OrderProfile struct {
	Name         string `yaml:"name"`
	OrderCommand string `yaml:"order_command"`
	TakeSlot     *int   `yaml:"take_slot"`
	TargetSlots  []int  `yaml:"target_slots"`
	CycleDelayMs int    `yaml:"cycle_delay_ms"`
	MaxCycles    *int   `yaml:"max_cycles"`
	DropDelayMs  int    `yaml:"drop_delay_ms"`
	GuiTimeoutMs int    `yaml:"gui_timeout_ms"`
}

// LoadProfile reads an order profile from a YAML file
func LoadProfile(path string) (*OrderProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile OrderProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if profile.OrderCommand == "" {
		return nil, fmt.Errorf("profile %s has no order_command", path)
	}

	return &profile, nil
}

// Apply overlays the profile onto a session config. Unset profile
// fields leave the config untouched.
func (p *OrderProfile) Apply(cfg *session.Config) {
	cfg.OrderCommand = p.OrderCommand
	if p.TakeSlot != nil {
		cfg.TakeSlot = *p.TakeSlot
	}
	if len(p.TargetSlots) > 0 {
		cfg.TargetSlots = p.TargetSlots
	}
	if p.CycleDelayMs > 0 {
		cfg.CycleDelay = time.Duration(p.CycleDelayMs) * time.Millisecond
	}
	if p.MaxCycles != nil {
		cfg.MaxCycles = *p.MaxCycles
	}
	if p.DropDelayMs > 0 {
		cfg.DropDelay = time.Duration(p.DropDelayMs) * time.Millisecond
	}
	if p.GuiTimeoutMs > 0 {
		cfg.GuiTimeout = time.Duration(p.GuiTimeoutMs) * time.Millisecond
	}
}
