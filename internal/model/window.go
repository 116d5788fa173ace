package model

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar date format used across the store and API.
	DateLayout = "2006-01-02"
	// ClockLayout is the wall-clock format of slot and window times.
	ClockLayout = "15:04"
)

// Window sources.
const (
	SourceConfig = "config"
	SourceAdmin  = "admin"
)

// AvailabilityWindow is an open interval on one date for one doctor.
type AvailabilityWindow struct {
	ID               int64     `json:"id"`
	DoctorID         int64     `json:"doctor_id"`
	Date             string    `json:"date"`       // "2025-03-10"
	StartTime        string    `json:"start_time"` // "09:00"
	EndTime          string    `json:"end_time"`   // "13:00"
	IncrementMinutes int       `json:"increment_minutes"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsSupportedIncrement reports whether minutes is a slot step the clinic offers.
func IsSupportedIncrement(minutes int) bool {
	return minutes == 30 || minutes == 60
}

// Bounds returns the window start and end as minutes after midnight.
func (w *AvailabilityWindow) Bounds() (start, end int, err error) {
	start, err = ParseClock(w.StartTime)
	if err != nil {
		return 0, 0, fmt.Errorf("window %d start: %w", w.ID, err)
	}
	end, err = ParseClock(w.EndTime)
	if err != nil {
		return 0, 0, fmt.Errorf("window %d end: %w", w.ID, err)
	}
	return start, end, nil
}

// Usable reports whether the window can produce slots. Windows with an
// unsupported increment or start >= end are skipped, not rejected.
func (w *AvailabilityWindow) Usable() bool {
	if !IsSupportedIncrement(w.IncrementMinutes) {
		return false
	}
	start, end, err := w.Bounds()
	if err != nil {
		return false
	}
	return start < end
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrInvalidInput, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate validates a "YYYY-MM-DD" date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrInvalidInput, s)
	}
	return d, nil
}

// HourSiblings returns the HH:00 and HH:30 minutes of the clock hour that
// contains minute.
func HourSiblings(minute int) (top, half int) {
	top = minute / 60 * 60
	return top, top + 30
}
