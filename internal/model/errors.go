package model

import "errors"

// Error kinds shared by the store, the booking service and the API.
var (
	ErrNoDeposit         = errors.New("no remaining deposit sessions")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrClinicClosed      = errors.New("clinic closed")
	ErrTransient         = errors.New("transient storage error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPaymentConflict   = errors.New("payment reference already used for another credit")
)
