package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"clinicbook/internal/model"
	"clinicbook/internal/tz"
)

// DoctorConfig represents a single doctor.
type DoctorConfig struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	Specialty string `yaml:"specialty"`
	Timezone  string `yaml:"timezone"`
	IsActive  bool   `yaml:"is_active"`
}

// WindowConfig is one dated availability window.
type WindowConfig struct {
	DoctorID         int64  `yaml:"doctor_id"`
	Date             string `yaml:"date"`       // "2025-03-10"
	StartTime        string `yaml:"start_time"` // "14:00"
	EndTime          string `yaml:"end_time"`   // "16:00"
	IncrementMinutes int    `yaml:"increment_minutes,omitempty"`
}

// ClosureConfig closes one doctor, or everyone when DoctorID is empty.
type ClosureConfig struct {
	DoctorID *int64            `yaml:"doctor_id,omitempty"`
	From     string            `yaml:"from"`
	To       string            `yaml:"to"`
	Reasons  map[string]string `yaml:"reasons"`
}

// ScheduleDefaults fill in omitted window fields.
type ScheduleDefaults struct {
	IncrementMinutes int `yaml:"increment_minutes"`
}

// ScheduleConfig is the root of schedule.yaml.
type ScheduleConfig struct {
	Defaults ScheduleDefaults `yaml:"defaults"`
	Doctors  []DoctorConfig   `yaml:"doctors"`
	Windows  []WindowConfig   `yaml:"windows"`
	Closures []ClosureConfig  `yaml:"closures"`
}

// LoadScheduleConfig loads and validates schedule.yaml.
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	if path == "" {
		path = "configs/schedule.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule config: %w", err)
	}

	var cfg ScheduleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse schedule config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate schedule config: %w", err)
	}

	return &cfg, nil
}

// Validate checks formats and references. Windows with start >= end or an
// unsupported increment are accepted here and skipped when slots are resolved.
func (c *ScheduleConfig) Validate() error {
	ids := make(map[int64]bool)
	for i, d := range c.Doctors {
		if d.ID <= 0 {
			return fmt.Errorf("doctors[%d]: id must be positive, got %d", i, d.ID)
		}
		if ids[d.ID] {
			return fmt.Errorf("doctors[%d]: duplicate id %d", i, d.ID)
		}
		ids[d.ID] = true

		if d.Name == "" {
			return fmt.Errorf("doctors[%d]: name is required", i)
		}
		if d.Timezone != "" && !tz.Valid(d.Timezone) {
			return fmt.Errorf("doctors[%d]: unknown timezone '%s'", i, d.Timezone)
		}
	}

	for i, w := range c.Windows {
		if !ids[w.DoctorID] {
			return fmt.Errorf("windows[%d]: unknown doctor %d", i, w.DoctorID)
		}
		if _, err := model.ParseDate(w.Date); err != nil {
			return fmt.Errorf("windows[%d]: %w", i, err)
		}
		if _, err := model.ParseClock(w.StartTime); err != nil {
			return fmt.Errorf("windows[%d].start_time: %w", i, err)
		}
		if _, err := model.ParseClock(w.EndTime); err != nil {
			return fmt.Errorf("windows[%d].end_time: %w", i, err)
		}
	}

	for i, cl := range c.Closures {
		if cl.DoctorID != nil && !ids[*cl.DoctorID] {
			return fmt.Errorf("closures[%d]: unknown doctor %d", i, *cl.DoctorID)
		}
		if _, err := model.ParseDate(cl.From); err != nil {
			return fmt.Errorf("closures[%d].from: %w", i, err)
		}
		if _, err := model.ParseDate(cl.To); err != nil {
			return fmt.Errorf("closures[%d].to: %w", i, err)
		}
		if cl.From > cl.To {
			return fmt.Errorf("closures[%d]: from must not be after to", i)
		}
	}

	return nil
}

func (c *ScheduleConfig) applyDefaults() {
	if c.Defaults.IncrementMinutes == 0 {
		c.Defaults.IncrementMinutes = 30
	}
	for i := range c.Windows {
		if c.Windows[i].IncrementMinutes == 0 {
			c.Windows[i].IncrementMinutes = c.Defaults.IncrementMinutes
		}
	}
}

// GetDoctorByID returns doctor config by ID.
func (c *ScheduleConfig) GetDoctorByID(id int64) *DoctorConfig {
	for i := range c.Doctors {
		if c.Doctors[i].ID == id {
			return &c.Doctors[i]
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *ScheduleConfig) String() string {
	active := 0
	for _, d := range c.Doctors {
		if d.IsActive {
			active++
		}
	}
	return fmt.Sprintf("ScheduleConfig: %d doctors (%d active), %d windows, %d closures",
		len(c.Doctors), active, len(c.Windows), len(c.Closures))
}
