// Package closure answers whether a doctor (or the whole clinic) is closed on a date.
package closure

import (
	"context"
	"fmt"
	"sort"

	"clinicbook/internal/model"
)

// FallbackReason is shown when a closure carries no usable translation.
const FallbackReason = "Clinic closed"

// reasonFallbackOrder is tried after the requested language.
var reasonFallbackOrder = []string{"el", "en", "fr"}

// Store lists closures that cover a date, global and doctor-specific alike.
type Store interface {
	ListClosuresOn(ctx context.Context, date string) ([]model.Closure, error)
}

// Info describes the closure in effect for a doctor on a date.
type Info struct {
	ClosureID int64             `json:"closure_id"`
	DoctorID  *int64            `json:"doctor_id,omitempty"`
	DateFrom  string            `json:"date_from"`
	DateTo    string            `json:"date_to"`
	Reasons   map[string]string `json:"reasons,omitempty"`
}

// Reason picks the reason text for lang, falling back to Greek, English,
// French and finally FallbackReason.
func (i *Info) Reason(lang string) string {
	if i == nil {
		return ""
	}
	candidates := append([]string{lang}, reasonFallbackOrder...)
	for _, code := range candidates {
		if code == "" {
			continue
		}
		if text := i.Reasons[code]; text != "" {
			return text
		}
	}
	return FallbackReason
}

// Calendar resolves closures.
type Calendar struct {
	store Store
}

// NewCalendar creates a closure calendar over store.
func NewCalendar(store Store) *Calendar {
	return &Calendar{store: store}
}

// IsClosed returns the first closure (lowest id) covering date for doctorID,
// or nil when the doctor is open.
func (c *Calendar) IsClosed(ctx context.Context, doctorID int64, date string) (*Info, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, err
	}
	closures, err := c.store.ListClosuresOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}
	sort.SliceStable(closures, func(i, j int) bool { return closures[i].ID < closures[j].ID })

	for _, cl := range closures {
		if !cl.AppliesTo(doctorID) || !cl.Covers(date) {
			continue
		}
		return &Info{
			ClosureID: cl.ID,
			DoctorID:  cl.DoctorID,
			DateFrom:  cl.DateFrom,
			DateTo:    cl.DateTo,
			Reasons:   cl.Reasons,
		}, nil
	}
	return nil, nil
}
