package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinicbook/internal/model"
)

// BookingTx describes one deposit redemption.
type BookingTx struct {
	Appointment *model.Appointment
	// GuardFrom and GuardTo bound a "HH:MM" range [from, to) that must hold
	// no other appointment at commit time. Empty disables the guard.
	GuardFrom string
	GuardTo   string
}

// GetDeposit returns the balance of customerID with doctorID, or nil when the
// customer never bought a package.
func (db *DB) GetDeposit(ctx context.Context, customerID string, doctorID int64) (*model.SessionDeposit, error) {
	return getDeposit(ctx, db, customerID, doctorID)
}

// ListDeposits returns every balance of customerID.
func (db *DB) ListDeposits(ctx context.Context, customerID string) ([]model.SessionDeposit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT customer_id, doctor_id, remaining_sessions, total_purchased, created_at, updated_at
		FROM session_deposits
		WHERE customer_id = ?
		ORDER BY doctor_id`,
		customerID,
	)
	if err != nil {
		return nil, storageErr("list deposits", err)
	}
	defer rows.Close()

	var deposits []model.SessionDeposit
	for rows.Next() {
		var d model.SessionDeposit
		if err := rows.Scan(&d.CustomerID, &d.DoctorID, &d.RemainingSessions, &d.TotalPurchased, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, storageErr("scan deposit", err)
		}
		deposits = append(deposits, d)
	}
	return deposits, storageErr("list deposits", rows.Err())
}

// BookWithDeposit decrements the deposit and inserts the appointment in one
// transaction. It returns the remaining balance.
//
// A decrement matching no row yields model.ErrNoDeposit; a taken slot or a
// conflict inside the guard range yields model.ErrSlotUnavailable.
func (db *DB) BookWithDeposit(ctx context.Context, b BookingTx) (int, error) {
	a := b.Appointment
	if a == nil {
		return 0, fmt.Errorf("appointment is nil")
	}
	if a.Source == "" {
		a.Source = model.AppointmentSourceDeposit
	}

	var remaining int
	err := db.withTx(ctx, "book with deposit", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE session_deposits
			SET remaining_sessions = remaining_sessions - 1, updated_at = ?
			WHERE customer_id = ? AND doctor_id = ? AND remaining_sessions > 0`,
			time.Now(), a.CustomerID, a.DoctorID,
		)
		if err != nil {
			return storageErr("decrement deposit", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return storageErr("decrement deposit", err)
		} else if n == 0 {
			return fmt.Errorf("customer %s doctor %d: %w", a.CustomerID, a.DoctorID, model.ErrNoDeposit)
		}

		if b.GuardFrom != "" && b.GuardTo != "" {
			var conflicts int
			err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM appointments
				WHERE doctor_id = ? AND date = ? AND time >= ? AND time < ?`,
				a.DoctorID, a.Date, b.GuardFrom, b.GuardTo,
			).Scan(&conflicts)
			if err != nil {
				return storageErr("check adjacent bookings", err)
			}
			if conflicts > 0 {
				return fmt.Errorf("%s %s: %w", a.Date, a.Time, model.ErrSlotUnavailable)
			}
		}

		if err := insertAppointment(ctx, tx, a); err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx,
			`SELECT remaining_sessions FROM session_deposits WHERE customer_id = ? AND doctor_id = ?`,
			a.CustomerID, a.DoctorID,
		).Scan(&remaining)
		return storageErr("read balance", err)
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// IncreaseDeposit adds sessions to the balance. A non-empty paymentRef is
// recorded and a repeated reference leaves the balance untouched; applied
// reports whether the credit happened.
func (db *DB) IncreaseDeposit(ctx context.Context, customerID string, doctorID int64, sessions int, paymentRef string) (deposit *model.SessionDeposit, applied bool, err error) {
	if sessions <= 0 {
		return nil, false, fmt.Errorf("%w: sessions must be positive, got %d", model.ErrInvalidInput, sessions)
	}

	err = db.withTx(ctx, "increase deposit", func(tx *sql.Tx) error {
		applied, err = creditDeposit(ctx, tx, customerID, doctorID, sessions, paymentRef)
		if err != nil {
			return err
		}
		deposit, err = getDeposit(ctx, tx, customerID, doctorID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return deposit, applied, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDeposit(ctx context.Context, q querier, customerID string, doctorID int64) (*model.SessionDeposit, error) {
	var d model.SessionDeposit
	err := q.QueryRowContext(ctx, `
		SELECT customer_id, doctor_id, remaining_sessions, total_purchased, created_at, updated_at
		FROM session_deposits
		WHERE customer_id = ? AND doctor_id = ?`,
		customerID, doctorID,
	).Scan(&d.CustomerID, &d.DoctorID, &d.RemainingSessions, &d.TotalPurchased, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get deposit", err)
	}
	return &d, nil
}

// creditDeposit records paymentRef and upserts the balance. It reports false
// when the same credit was already recorded under paymentRef.
func creditDeposit(ctx context.Context, tx *sql.Tx, customerID string, doctorID int64, sessions int, paymentRef string) (bool, error) {
	now := time.Now()
	if paymentRef != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO deposit_payments (payment_ref, customer_id, doctor_id, sessions, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(payment_ref) DO NOTHING`,
			paymentRef, customerID, doctorID, sessions, now,
		)
		if err != nil {
			return false, storageErr("record payment", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return false, checkReplay(ctx, tx, customerID, doctorID, sessions, paymentRef)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_deposits (customer_id, doctor_id, remaining_sessions, total_purchased, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, doctor_id) DO UPDATE SET
			remaining_sessions = remaining_sessions + excluded.remaining_sessions,
			total_purchased = total_purchased + excluded.total_purchased,
			updated_at = excluded.updated_at`,
		customerID, doctorID, sessions, sessions, now, now,
	)
	if err != nil {
		return false, storageErr("credit deposit", err)
	}
	return true, nil
}

// checkReplay accepts a repeated paymentRef only when it carries the credit
// recorded first.
func checkReplay(ctx context.Context, tx *sql.Tx, customerID string, doctorID int64, sessions int, paymentRef string) error {
	var (
		recordedCustomer string
		recordedDoctor   int64
		recordedSessions int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT customer_id, doctor_id, sessions FROM deposit_payments WHERE payment_ref = ?`,
		paymentRef,
	).Scan(&recordedCustomer, &recordedDoctor, &recordedSessions)
	if err != nil {
		return storageErr("read payment", err)
	}
	if recordedCustomer != customerID || recordedDoctor != doctorID || recordedSessions != sessions {
		return fmt.Errorf("payment %s recorded for customer %s doctor %d (%d sessions): %w",
			paymentRef, recordedCustomer, recordedDoctor, recordedSessions, model.ErrPaymentConflict)
	}
	return nil
}
