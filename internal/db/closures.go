package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"clinicbook/internal/model"
)

// CreateClosure stores a closure. Overlapping closures are allowed.
func (db *DB) CreateClosure(ctx context.Context, c *model.Closure) error {
	if c == nil {
		return fmt.Errorf("closure is nil")
	}
	if _, err := model.ParseDate(c.DateFrom); err != nil {
		return err
	}
	if _, err := model.ParseDate(c.DateTo); err != nil {
		return err
	}
	if c.DateFrom > c.DateTo {
		return fmt.Errorf("%w: closure starts after it ends", model.ErrInvalidInput)
	}
	if c.Source == "" {
		c.Source = model.SourceAdmin
	}

	reasons, err := encodeReasons(c.Reasons)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO closures (doctor_id, date_from, date_to, reason_json, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullableID(c.DoctorID), c.DateFrom, c.DateTo, reasons, c.Source, now,
	)
	if err != nil {
		return storageErr("create closure", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	c.CreatedAt = now
	return nil
}

// ListClosuresOn returns closures whose range covers date, lowest id first.
func (db *DB) ListClosuresOn(ctx context.Context, date string) ([]model.Closure, error) {
	return db.queryClosures(ctx, `
		SELECT id, doctor_id, date_from, date_to, reason_json, source, created_at
		FROM closures
		WHERE date_from <= ? AND date_to >= ?
		ORDER BY id`,
		date, date,
	)
}

// ListClosures returns every closure, lowest id first.
func (db *DB) ListClosures(ctx context.Context) ([]model.Closure, error) {
	return db.queryClosures(ctx, `
		SELECT id, doctor_id, date_from, date_to, reason_json, source, created_at
		FROM closures
		ORDER BY id`,
	)
}

// DeleteClosure removes a closure by id.
func (db *DB) DeleteClosure(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM closures WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete closure", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("closure %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (db *DB) queryClosures(ctx context.Context, query string, args ...any) ([]model.Closure, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list closures", err)
	}
	defer rows.Close()

	var closures []model.Closure
	for rows.Next() {
		var c model.Closure
		var doctorID sql.NullInt64
		var reasons string
		if err := rows.Scan(&c.ID, &doctorID, &c.DateFrom, &c.DateTo, &reasons, &c.Source, &c.CreatedAt); err != nil {
			return nil, storageErr("scan closure", err)
		}
		if doctorID.Valid {
			id := doctorID.Int64
			c.DoctorID = &id
		}
		// A malformed reason map falls back to the generic reason text.
		if reasons != "" {
			_ = json.Unmarshal([]byte(reasons), &c.Reasons)
		}
		closures = append(closures, c)
	}
	return closures, storageErr("list closures", rows.Err())
}

func encodeReasons(reasons map[string]string) (string, error) {
	if len(reasons) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return "", fmt.Errorf("encode closure reasons: %w", err)
	}
	return string(data), nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
