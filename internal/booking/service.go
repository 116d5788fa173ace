// Package booking turns prepaid session deposits into confirmed appointments.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinicbook/internal/db"
	"clinicbook/internal/events"
	"clinicbook/internal/lock"
	"clinicbook/internal/metrics"
	"clinicbook/internal/model"
	"clinicbook/internal/slots"
	"clinicbook/internal/tz"
)

var tracer = otel.Tracer("clinicbook.internal.booking")

// Booking outcomes as reported to metrics and traces.
const (
	OutcomeSuccess         = "success"
	OutcomeNoDeposit       = "no_deposit"
	OutcomeSlotUnavailable = "slot_unavailable"
	OutcomeClinicClosed    = "clinic_closed"
	OutcomeTransient       = "transient"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

// Store is the persistence the service needs.
type Store interface {
	GetDoctor(ctx context.Context, id int64) (*model.Doctor, error)
	GetDeposit(ctx context.Context, customerID string, doctorID int64) (*model.SessionDeposit, error)
	ListDeposits(ctx context.Context, customerID string) ([]model.SessionDeposit, error)
	BookWithDeposit(ctx context.Context, b db.BookingTx) (int, error)
	IncreaseDeposit(ctx context.Context, customerID string, doctorID int64, sessions int, paymentRef string) (*model.SessionDeposit, bool, error)
	GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error
	CreateManualDeposit(ctx context.Context, m *model.ManualDeposit) error
	ListManualDeposits(ctx context.Context, status model.ManualDepositStatus) ([]model.ManualDeposit, error)
	DecideManualDeposit(ctx context.Context, id int64, next model.ManualDepositStatus, decidedBy string) (*model.ManualDeposit, *model.SessionDeposit, error)
}

// Resolver computes slots.
type Resolver interface {
	Resolve(ctx context.Context, doctorID int64, date string, lockAdjacentHalfHour bool) (*slots.Resolution, error)
}

// Config holds scheduling policy.
type Config struct {
	LockAdjacentHalfHour bool
	// DefaultTimezone applies to doctors without an explicit zone.
	DefaultTimezone string
}

// Request asks to redeem one session for a slot.
type Request struct {
	CustomerID   string `json:"customer_id"`
	DoctorID     int64  `json:"doctor_id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email,omitempty"`
	PatientPhone string `json:"patient_phone,omitempty"`
}

// Service runs deposit bookings.
type Service struct {
	store    Store
	resolver Resolver
	locker   lock.Locker
	clock    *tz.Translator
	events   events.Publisher
	cfg      Config
	logger   zerolog.Logger
}

// NewService creates a booking service. publisher may be nil.
func NewService(
	store Store,
	resolver Resolver,
	locker lock.Locker,
	clock *tz.Translator,
	publisher events.Publisher,
	cfg Config,
	logger *zerolog.Logger,
) *Service {
	if clock == nil {
		clock = tz.NewTranslator()
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = tz.Athens
	}
	return &Service{
		store:    store,
		resolver: resolver,
		locker:   locker,
		clock:    clock,
		events:   publisher,
		cfg:      cfg,
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// LockAdjacentHalfHour reports the configured lock policy.
func (s *Service) LockAdjacentHalfHour() bool {
	return s.cfg.LockAdjacentHalfHour
}

// DoctorZone returns the timezone a doctor's slots are expressed in.
func (s *Service) DoctorZone(d *model.Doctor) (string, error) {
	zone, _, err := tz.ResolveZone(d.Timezone, s.cfg.DefaultTimezone)
	return zone, err
}

// ResolveSlots resolves the slots of an active doctor. A nil lockOverride
// uses the configured policy.
func (s *Service) ResolveSlots(ctx context.Context, doctorID int64, date string, lockOverride *bool) (*slots.Resolution, error) {
	if _, err := s.activeDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	lockPolicy := s.cfg.LockAdjacentHalfHour
	if lockOverride != nil {
		lockPolicy = *lockOverride
	}

	start := time.Now()
	res, err := s.resolver.Resolve(ctx, doctorID, date, lockPolicy)
	metrics.ObserveResolve(time.Since(start))
	return res, err
}

// BookWithDeposit redeems one session of the customer's deposit with the
// doctor for the requested slot. Preconditions fail in order with
// model.ErrNoDeposit, then *UnavailableError or *ClosedError from a fresh
// resolution taken under the slot lock.
func (s *Service) BookWithDeposit(ctx context.Context, req Request) (*model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.book_with_deposit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinicbook.doctor_id", req.DoctorID),
		attribute.String("clinicbook.date", req.Date),
		attribute.String("clinicbook.time", req.Time),
	)

	appt, remaining, err := s.bookWithDeposit(ctx, req)
	outcome := Outcome(err)
	metrics.IncBooking(outcome)
	span.SetAttributes(attribute.String("clinicbook.outcome", outcome))

	log := s.logger.With().
		Str("customer_id", req.CustomerID).
		Int64("doctor_id", req.DoctorID).
		Str("date", req.Date).
		Str("time", req.Time).
		Logger()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		switch outcome {
		case OutcomeTransient, OutcomeError:
			log.Error().Err(err).Str("outcome", outcome).Msg("Deposit booking failed")
		default:
			log.Info().Err(err).Str("outcome", outcome).Msg("Deposit booking refused")
		}
		return nil, err
	}

	log.Info().Int64("appointment_id", appt.ID).Int("remaining_sessions", remaining).Msg("Deposit booking confirmed")
	if err := events.PublishJSON(s.events, events.AppointmentBooked, appt); err != nil {
		log.Warn().Err(err).Msg("Failed to publish booking event")
	}
	return appt, nil
}

func (s *Service) bookWithDeposit(ctx context.Context, req Request) (*model.Appointment, int, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		return nil, 0, fmt.Errorf("%w: customer_id is required", model.ErrInvalidInput)
	}
	if _, err := model.ParseDate(req.Date); err != nil {
		return nil, 0, err
	}
	clockMinutes, err := model.ParseClock(req.Time)
	if err != nil {
		return nil, 0, err
	}
	req.Time = model.FormatClock(clockMinutes)

	doctor, err := s.activeDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, 0, err
	}
	zone, err := s.DoctorZone(doctor)
	if err != nil {
		return nil, 0, err
	}
	future, err := s.clock.IsFutureDate(req.Date, zone)
	if err != nil {
		return nil, 0, err
	}
	if !future {
		return nil, 0, fmt.Errorf("%w: date %s is in the past in %s", model.ErrInvalidInput, req.Date, zone)
	}

	deposit, err := s.store.GetDeposit(ctx, req.CustomerID, req.DoctorID)
	if err != nil {
		return nil, 0, fmt.Errorf("get deposit: %w", err)
	}
	if !deposit.HasBalance() {
		return nil, 0, fmt.Errorf("customer %s doctor %d: %w", req.CustomerID, req.DoctorID, model.ErrNoDeposit)
	}

	key, err := lock.HourKey(req.DoctorID, req.Date, req.Time)
	if err != nil {
		return nil, 0, err
	}
	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, key)
	metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	res, err := s.resolver.Resolve(ctx, req.DoctorID, req.Date, s.cfg.LockAdjacentHalfHour)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve slots: %w", err)
	}
	if res.Closed() {
		return nil, 0, &ClosedError{DoctorID: req.DoctorID, Date: req.Date, Closure: res.Closure}
	}
	slot := res.Lookup(req.Time)
	if !slot.Available {
		return nil, 0, &UnavailableError{Date: req.Date, Time: req.Time, Reason: slot.Reason}
	}

	appt := &model.Appointment{
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Time:         req.Time,
		CustomerID:   req.CustomerID,
		PatientName:  strings.TrimSpace(req.PatientName),
		PatientEmail: strings.TrimSpace(req.PatientEmail),
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		Source:       model.AppointmentSourceDeposit,
	}
	tx := db.BookingTx{Appointment: appt}
	tx.GuardFrom, tx.GuardTo = s.guardRange(slot, clockMinutes)

	remaining, err := s.store.BookWithDeposit(ctx, tx)
	if errors.Is(err, model.ErrSlotUnavailable) {
		return nil, 0, &UnavailableError{Date: req.Date, Time: req.Time, Reason: slots.ReasonBooked}
	}
	if err != nil {
		return nil, 0, err
	}
	return appt, remaining, nil
}

// guardRange returns the [from, to) times that must stay free at commit for
// slot to remain bookable. Under the lock policy it covers the slot's clock
// hour; a 60-minute slot also covers the hour it spans.
func (s *Service) guardRange(slot slots.Slot, minutes int) (string, string) {
	from, to := -1, -1
	if s.cfg.LockAdjacentHalfHour {
		top, _ := model.HourSiblings(minutes)
		from, to = top, top+60
	}
	if slot.Increment == 60 {
		if from < 0 || minutes < from {
			from = minutes
		}
		to = max(to, minutes+60)
	}
	if from < 0 {
		return "", ""
	}
	return model.FormatClock(from), model.FormatClock(to)
}

func (s *Service) activeDoctor(ctx context.Context, doctorID int64) (*model.Doctor, error) {
	doctor, err := s.store.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, fmt.Errorf("doctor %d is inactive: %w", doctorID, model.ErrNotFound)
	}
	return doctor, nil
}

// Outcome classifies a booking error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, model.ErrNoDeposit):
		return OutcomeNoDeposit
	case errors.Is(err, model.ErrClinicClosed):
		return OutcomeClinicClosed
	case errors.Is(err, model.ErrSlotUnavailable):
		return OutcomeSlotUnavailable
	case errors.Is(err, model.ErrTransient):
		return OutcomeTransient
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrNotFound), errors.Is(err, tz.ErrInvalidTimezone):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
