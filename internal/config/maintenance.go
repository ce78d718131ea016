package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// MaintenanceConfig contains settings for scheduled database maintenance
type MaintenanceConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"` // standard 5-field cron spec or @every/@daily descriptor
	Vacuum   bool   `json:"vacuum,omitempty" yaml:"vacuum,omitempty"`
}

// Validate validates the maintenance configuration
func (m MaintenanceConfig) Validate() error {
	if !m.Enabled {
		return nil // No validation needed if disabled
	}

	if m.Schedule == "" {
		return fmt.Errorf("maintenance schedule is required when maintenance is enabled")
	}

	if _, err := cron.ParseStandard(m.Schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", m.Schedule, err)
	}

	return nil
}

// DefaultMaintenanceConfig returns default maintenance configuration
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:  true,
		Schedule: "0 4 * * *", // daily at 04:00
		Vacuum:   false,
	}
}
