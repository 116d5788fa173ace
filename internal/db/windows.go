package db

import (
	"context"
	"fmt"
	"time"

	"clinicbook/internal/model"
)

// CreateWindow stores an availability window. Format is validated here;
// windows that cannot produce slots are still stored and skipped on read.
func (db *DB) CreateWindow(ctx context.Context, w *model.AvailabilityWindow) error {
	if w == nil {
		return fmt.Errorf("window is nil")
	}
	if _, err := model.ParseDate(w.Date); err != nil {
		return err
	}
	if _, _, err := w.Bounds(); err != nil {
		return err
	}
	if w.Source == "" {
		w.Source = model.SourceAdmin
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO availability_windows (
			doctor_id, date, start_time, end_time, increment_minutes, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.DoctorID, w.Date, w.StartTime, w.EndTime, w.IncrementMinutes, w.Source, now, now,
	)
	if err != nil {
		return storageErr("create window", err)
	}
	w.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	w.CreatedAt, w.UpdatedAt = now, now
	return nil
}

// ListWindows returns every stored window of doctorID on date, usable or not.
func (db *DB) ListWindows(ctx context.Context, doctorID int64, date string) ([]model.AvailabilityWindow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, doctor_id, date, start_time, end_time, increment_minutes, source, created_at, updated_at
		FROM availability_windows
		WHERE doctor_id = ? AND date = ?
		ORDER BY start_time, id`,
		doctorID, date,
	)
	if err != nil {
		return nil, storageErr("list windows", err)
	}
	defer rows.Close()

	var windows []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		if err := rows.Scan(
			&w.ID, &w.DoctorID, &w.Date, &w.StartTime, &w.EndTime,
			&w.IncrementMinutes, &w.Source, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, storageErr("scan window", err)
		}
		windows = append(windows, w)
	}
	return windows, storageErr("list windows", rows.Err())
}

// DeleteWindow removes a window by id.
func (db *DB) DeleteWindow(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM availability_windows WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete window", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("window %d: %w", id, model.ErrNotFound)
	}
	return nil
}
