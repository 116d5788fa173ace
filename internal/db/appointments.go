package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinicbook/internal/model"
)

const appointmentColumns = `id, doctor_id, date, time, customer_id, patient_name, patient_email, patient_phone, source, created_at`

func scanAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	var a model.Appointment
	var customerID, email, phone sql.NullString
	if err := row.Scan(
		&a.ID, &a.DoctorID, &a.Date, &a.Time, &customerID,
		&a.PatientName, &email, &phone, &a.Source, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.CustomerID = customerID.String
	a.PatientEmail = email.String
	a.PatientPhone = phone.String
	return &a, nil
}

// BookedTimes returns the start times booked for doctorID on date.
func (db *DB) BookedTimes(ctx context.Context, doctorID int64, date string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT time FROM appointments WHERE doctor_id = ? AND date = ? ORDER BY time`,
		doctorID, date,
	)
	if err != nil {
		return nil, storageErr("list booked times", err)
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, storageErr("scan booked time", err)
		}
		times = append(times, t)
	}
	return times, storageErr("list booked times", rows.Err())
}

// ListAppointments returns the appointments of doctorID on date.
func (db *DB) ListAppointments(ctx context.Context, doctorID int64, date string) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE doctor_id = ? AND date = ? ORDER BY time`,
		doctorID, date,
	)
	if err != nil {
		return nil, storageErr("list appointments", err)
	}
	defer rows.Close()

	var appointments []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, storageErr("scan appointment", err)
		}
		appointments = append(appointments, *a)
	}
	return appointments, storageErr("list appointments", rows.Err())
}

// GetAppointment returns an appointment by id or model.ErrNotFound.
func (db *DB) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("appointment %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get appointment", err)
	}
	return a, nil
}

// DeleteAppointment removes an appointment, freeing its slot.
func (db *DB) DeleteAppointment(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete appointment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %d: %w", id, model.ErrNotFound)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertAppointment inserts a under the (doctor, date, time) unique index.
func insertAppointment(ctx context.Context, ex execer, a *model.Appointment) error {
	now := time.Now()
	res, err := ex.ExecContext(ctx, `
		INSERT INTO appointments (
			doctor_id, date, time, customer_id, patient_name, patient_email, patient_phone, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.DoctorID, a.Date, a.Time, nullableString(a.CustomerID),
		a.PatientName, nullableString(a.PatientEmail), nullableString(a.PatientPhone), a.Source, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", a.Date, a.Time, model.ErrSlotUnavailable)
	}
	if err != nil {
		return storageErr("insert appointment", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	a.CreatedAt = now
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateAppointment books a slot directly, without redeeming a deposit.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is nil")
	}
	if a.Source == "" {
		a.Source = model.AppointmentSourceAdmin
	}
	return insertAppointment(ctx, db, a)
}
