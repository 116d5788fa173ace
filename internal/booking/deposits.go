package booking

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/model"
)

// Deposit credit sources.
const (
	CreditPayment = "payment"
	CreditManual  = "manual"
)

// DepositIncrease is the payload of events.DepositIncreased.
type DepositIncrease struct {
	CustomerID        string `json:"customer_id"`
	DoctorID          int64  `json:"doctor_id"`
	Sessions          int    `json:"sessions"`
	RemainingSessions int    `json:"remaining_sessions"`
	Source            string `json:"source"`
	Reference         string `json:"reference,omitempty"`
}

// IncreaseDeposit credits sessions after a confirmed payment. Re-delivering
// the same paymentRef returns the current balance without crediting again.
func (s *Service) IncreaseDeposit(ctx context.Context, customerID string, doctorID int64, sessions int, paymentRef string) (*model.SessionDeposit, error) {
	ctx, span := tracer.Start(ctx, "booking.increase_deposit")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("clinicbook.doctor_id", doctorID),
		attribute.Int("clinicbook.sessions", sessions),
	)

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", model.ErrInvalidInput)
	}
	if _, err := s.store.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	deposit, applied, err := s.store.IncreaseDeposit(ctx, customerID, doctorID, sessions, strings.TrimSpace(paymentRef))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "increase deposit")
		return nil, fmt.Errorf("increase deposit: %w", err)
	}

	log := s.logger.With().
		Str("customer_id", customerID).
		Int64("doctor_id", doctorID).
		Str("payment_ref", paymentRef).
		Logger()

	if !applied {
		log.Info().Msg("Payment already credited, ignoring repeat")
		return deposit, nil
	}

	metrics.AddDepositCredited(CreditPayment, sessions)
	log.Info().Int("sessions", sessions).Int("remaining_sessions", deposit.RemainingSessions).Msg("Deposit increased")
	s.publish(events.DepositIncreased, DepositIncrease{
		CustomerID:        customerID,
		DoctorID:          doctorID,
		Sessions:          sessions,
		RemainingSessions: deposit.RemainingSessions,
		Source:            CreditPayment,
		Reference:         paymentRef,
	})
	return deposit, nil
}

// Deposits lists the balances of a customer.
func (s *Service) Deposits(ctx context.Context, customerID string) ([]model.SessionDeposit, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", model.ErrInvalidInput)
	}
	return s.store.ListDeposits(ctx, customerID)
}

// CancelAppointment deletes an appointment and frees its slot. The redeemed
// session is not refunded.
func (s *Service) CancelAppointment(ctx context.Context, id int64) error {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	metrics.IncAppointmentCancelled()
	s.logger.Info().
		Int64("appointment_id", id).
		Int64("doctor_id", appt.DoctorID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("Appointment cancelled")
	s.publish(events.AppointmentCancelled, appt)
	return nil
}

// RequestManualDeposit records a deposit entered outside checkout. It
// credits nothing until approved.
func (s *Service) RequestManualDeposit(ctx context.Context, customerID string, doctorID int64, sessions int, note string) (*model.ManualDeposit, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", model.ErrInvalidInput)
	}
	if _, err := s.store.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	m := &model.ManualDeposit{
		CustomerID: customerID,
		DoctorID:   doctorID,
		Sessions:   sessions,
		Note:       strings.TrimSpace(note),
	}
	if err := s.store.CreateManualDeposit(ctx, m); err != nil {
		return nil, fmt.Errorf("create manual deposit: %w", err)
	}

	s.logger.Info().Int64("manual_deposit_id", m.ID).Str("reference", m.Reference).Msg("Manual deposit requested")
	s.publish(events.ManualDepositRequested, m)
	return m, nil
}

// ApproveManualDeposit completes a pending manual deposit and credits it.
func (s *Service) ApproveManualDeposit(ctx context.Context, id int64, decidedBy string) (*model.ManualDeposit, error) {
	m, balance, err := s.decide(ctx, id, model.ManualDepositCompleted, decidedBy)
	if err != nil {
		return nil, err
	}
	metrics.AddDepositCredited(CreditManual, m.Sessions)
	increase := DepositIncrease{
		CustomerID: m.CustomerID,
		DoctorID:   m.DoctorID,
		Sessions:   m.Sessions,
		Source:     CreditManual,
		Reference:  m.Reference,
	}
	if balance != nil {
		increase.RemainingSessions = balance.RemainingSessions
	}
	s.publish(events.DepositIncreased, increase)
	return m, nil
}

// RejectManualDeposit rejects a pending manual deposit.
func (s *Service) RejectManualDeposit(ctx context.Context, id int64, decidedBy string) (*model.ManualDeposit, error) {
	m, _, err := s.decide(ctx, id, model.ManualDepositRejected, decidedBy)
	return m, err
}

// ListManualDeposits lists manual deposits, all of them for an empty status.
func (s *Service) ListManualDeposits(ctx context.Context, status model.ManualDepositStatus) ([]model.ManualDeposit, error) {
	switch status {
	case "", model.ManualDepositPending, model.ManualDepositCompleted, model.ManualDepositRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrInvalidInput, status)
	}
	return s.store.ListManualDeposits(ctx, status)
}

func (s *Service) decide(ctx context.Context, id int64, next model.ManualDepositStatus, decidedBy string) (*model.ManualDeposit, *model.SessionDeposit, error) {
	m, balance, err := s.store.DecideManualDeposit(ctx, id, next, strings.TrimSpace(decidedBy))
	if err != nil {
		return nil, nil, err
	}
	metrics.IncManualDecision(string(next))
	s.logger.Info().
		Int64("manual_deposit_id", id).
		Str("status", string(next)).
		Str("decided_by", decidedBy).
		Msg("Manual deposit decided")
	s.publish(events.ManualDepositDecided, m)
	return m, balance, nil
}

func (s *Service) publish(eventType string, payload any) {
	if err := events.PublishJSON(s.events, eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
