// Package tz translates wall-clock dates and times between IANA timezones.
package tz

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04"
	dateTimeLayout = dateLayout + " " + clockLayout
)

// Zones the clinic operates in.
const (
	Athens = "Europe/Athens"
	Zurich = "Europe/Zurich"
)

// ErrInvalidTimezone is returned for an unknown or empty zone identifier.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Location loads an IANA zone. Empty and "Local" are rejected so callers never
// fall back to the host zone or UTC by accident.
func Location(zone string) (*time.Location, error) {
	if zone == "" || zone == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, zone)
	}
	return loc, nil
}

// Valid reports whether zone can be loaded.
func Valid(zone string) bool {
	_, err := Location(zone)
	return err == nil
}

// Convert maps a naive local date and time in fromZone to the equivalent
// local date and time in toZone. The offsets in effect on that calendar date
// are used, so DST differences between the zones are respected.
func Convert(date, clock, fromZone, toZone string) (string, string, error) {
	from, err := Location(fromZone)
	if err != nil {
		return "", "", err
	}
	to, err := Location(toZone)
	if err != nil {
		return "", "", err
	}
	local, err := time.ParseInLocation(dateTimeLayout, date+" "+clock, from)
	if err != nil {
		return "", "", fmt.Errorf("parse %s %s: %w", date, clock, err)
	}
	if fromZone == toZone {
		return date, clock, nil
	}
	out := local.In(to)
	return out.Format(dateLayout), out.Format(clockLayout), nil
}

// ResolveZone returns candidate when it is a valid zone, otherwise fallback.
// The boolean reports whether the fallback was used so callers can log it.
func ResolveZone(candidate, fallback string) (string, bool, error) {
	if candidate != "" && Valid(candidate) {
		return candidate, false, nil
	}
	if _, err := Location(fallback); err != nil {
		return "", true, err
	}
	return fallback, true, nil
}

// Translator answers "what day is it" questions against an injectable clock.
type Translator struct {
	now func() time.Time
}

// NewTranslator creates a translator on the wall clock.
func NewTranslator() *Translator {
	return &Translator{now: time.Now}
}

// NewTranslatorWithClock creates a translator with a fixed clock source.
func NewTranslatorWithClock(now func() time.Time) *Translator {
	if now == nil {
		now = time.Now
	}
	return &Translator{now: now}
}

// Now returns the current instant in zone.
func (t *Translator) Now(zone string) (time.Time, error) {
	loc, err := Location(zone)
	if err != nil {
		return time.Time{}, err
	}
	return t.now().In(loc), nil
}

// CurrentDate returns today's date as observed in zone.
func (t *Translator) CurrentDate(zone string) (string, error) {
	now, err := t.Now(zone)
	if err != nil {
		return "", err
	}
	return now.Format(dateLayout), nil
}

// IsFutureDate reports whether date is today or later in zone.
func (t *Translator) IsFutureDate(date, zone string) (bool, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return false, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	today, err := t.CurrentDate(zone)
	if err != nil {
		return false, err
	}
	return date >= today, nil
}
