package booking

import (
	"fmt"

	"clinicbook/internal/closure"
	"clinicbook/internal/model"
)

// ClosedError reports the closure that blocked a booking.
type ClosedError struct {
	DoctorID int64
	Date     string
	Closure  *closure.Info
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("doctor %d closed on %s (%s to %s)", e.DoctorID, e.Date, e.Closure.DateFrom, e.Closure.DateTo)
}

func (e *ClosedError) Unwrap() error {
	return model.ErrClinicClosed
}

// UnavailableError reports why the requested time cannot be booked.
type UnavailableError struct {
	Date   string
	Time   string
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("slot %s %s unavailable: %s", e.Date, e.Time, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return model.ErrSlotUnavailable
}
