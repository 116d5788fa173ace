// Package slots computes the bookable time slots of a doctor on one date.
package slots

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"clinicbook/internal/closure"
	"clinicbook/internal/model"
)

// Reasons attached to unavailable slots.
const (
	ReasonBooked        = "booked"
	ReasonLocked        = "locked"
	ReasonOutsideWindow = "outside_window"
	ReasonClosed        = "closed"
)

// Slot is a single bookable time-of-day candidate.
type Slot struct {
	Time      string `json:"time"` // "09:30"
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	// Increment is the smallest step of the windows producing this time.
	Increment int `json:"increment_minutes,omitempty"`
}

// Resolution is the outcome of resolving one doctor and date.
type Resolution struct {
	DoctorID int64         `json:"doctor_id"`
	Date     string        `json:"date"`
	Slots    []Slot        `json:"slots"`
	Closure  *closure.Info `json:"closure,omitempty"`
}

// Closed reports whether a closure suppressed all slots.
func (r *Resolution) Closed() bool {
	return r.Closure != nil
}

// Lookup returns the slot starting at clock. Times no window produces come
// back unavailable with ReasonOutsideWindow, or ReasonClosed on a closed date.
func (r *Resolution) Lookup(clock string) Slot {
	if r.Closed() {
		return Slot{Time: clock, Reason: ReasonClosed}
	}
	for _, s := range r.Slots {
		if s.Time == clock {
			return s
		}
	}
	return Slot{Time: clock, Reason: ReasonOutsideWindow}
}

// Available returns only the available slots.
func (r *Resolution) Available() []Slot {
	var available []Slot
	for _, s := range r.Slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// WindowSource loads availability windows.
type WindowSource interface {
	ListWindows(ctx context.Context, doctorID int64, date string) ([]model.AvailabilityWindow, error)
}

// BookingSource loads the start times already booked.
type BookingSource interface {
	BookedTimes(ctx context.Context, doctorID int64, date string) ([]string, error)
}

// ClosureChecker reports the closure in effect, if any.
type ClosureChecker interface {
	IsClosed(ctx context.Context, doctorID int64, date string) (*closure.Info, error)
}

// Resolver combines windows, bookings and closures into slots.
type Resolver struct {
	windows  WindowSource
	bookings BookingSource
	closures ClosureChecker
}

// NewResolver creates a slot resolver.
func NewResolver(windows WindowSource, bookings BookingSource, closures ClosureChecker) *Resolver {
	return &Resolver{windows: windows, bookings: bookings, closures: closures}
}

type candidate struct {
	available bool
	increment int
}

// Resolve computes the slots of doctorID on date. Missing windows, bookings
// or closures yield fewer slots, never an error; storage failures are
// reported as model.ErrTransient.
func (r *Resolver) Resolve(ctx context.Context, doctorID int64, date string, lockAdjacentHalfHour bool) (*Resolution, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, err
	}
	res := &Resolution{DoctorID: doctorID, Date: date, Slots: []Slot{}}

	if r.closures != nil {
		info, err := r.closures.IsClosed(ctx, doctorID, date)
		if err != nil {
			return nil, transient("check closure", err)
		}
		if info != nil {
			res.Closure = info
			return res, nil
		}
	}

	windows, err := r.windows.ListWindows(ctx, doctorID, date)
	if err != nil {
		return nil, transient("list windows", err)
	}
	if len(windows) == 0 {
		return res, nil
	}

	booked := map[int]bool{}
	if r.bookings != nil {
		times, err := r.bookings.BookedTimes(ctx, doctorID, date)
		if err != nil {
			return nil, transient("list bookings", err)
		}
		for _, t := range times {
			m, err := model.ParseClock(t)
			if err != nil {
				continue
			}
			booked[m] = true
		}
	}

	candidates := map[int]*candidate{}
	for i := range windows {
		w := &windows[i]
		if !w.Usable() {
			continue
		}
		start, end, _ := w.Bounds()
		step := w.IncrementMinutes
		for cursor := start; cursor+step <= end; cursor += step {
			free := !bookedWithin(booked, cursor, step)
			c, ok := candidates[cursor]
			if !ok {
				candidates[cursor] = &candidate{available: free, increment: step}
				continue
			}
			c.available = c.available || free
			if step < c.increment {
				c.increment = step
			}
		}
	}

	for minute, c := range candidates {
		s := Slot{Time: model.FormatClock(minute), Available: c.available, Increment: c.increment}
		switch {
		case booked[minute]:
			s.Available, s.Reason = false, ReasonBooked
		case !c.available:
			s.Reason = ReasonBooked
		case lockAdjacentHalfHour && siblingBooked(booked, minute):
			s.Available, s.Reason = false, ReasonLocked
		}
		res.Slots = append(res.Slots, s)
	}

	sort.Slice(res.Slots, func(i, j int) bool { return res.Slots[i].Time < res.Slots[j].Time })
	return res, nil
}

// bookedWithin reports whether a booking starts inside [start, start+step).
func bookedWithin(booked map[int]bool, start, step int) bool {
	for m := range booked {
		if m >= start && m < start+step {
			return true
		}
	}
	return false
}

// siblingBooked reports whether HH:00 or HH:30 of minute's clock hour is booked.
func siblingBooked(booked map[int]bool, minute int) bool {
	top, half := model.HourSiblings(minute)
	return booked[top] || booked[half]
}

func transient(op string, err error) error {
	if errors.Is(err, model.ErrTransient) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrTransient, err)
}
