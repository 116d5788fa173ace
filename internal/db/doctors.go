package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinicbook/internal/model"
)

const doctorColumns = `id, name, specialty, timezone, is_active, created_at, updated_at`

func scanDoctor(row interface{ Scan(...any) error }) (*model.Doctor, error) {
	var d model.Doctor
	var specialty, timezone sql.NullString
	if err := row.Scan(&d.ID, &d.Name, &specialty, &timezone, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Specialty = specialty.String
	d.Timezone = timezone.String
	return &d, nil
}

// UpsertDoctor inserts or updates a doctor keeping its created_at.
func (db *DB) UpsertDoctor(ctx context.Context, d *model.Doctor) error {
	if d == nil {
		return fmt.Errorf("doctor is nil")
	}
	now := time.Now()
	if d.ID == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO doctors (name, specialty, timezone, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			d.Name, d.Specialty, d.Timezone, d.IsActive, now, now,
		)
		if err != nil {
			return storageErr("insert doctor", err)
		}
		d.ID, err = res.LastInsertId()
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO doctors (id, name, specialty, timezone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			timezone = excluded.timezone,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Specialty, d.Timezone, d.IsActive, now, now,
	)
	return storageErr("upsert doctor", err)
}

// GetDoctor returns a doctor by id or model.ErrNotFound.
func (db *DB) GetDoctor(ctx context.Context, id int64) (*model.Doctor, error) {
	row := db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = ?`, id)
	d, err := scanDoctor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("doctor %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get doctor", err)
	}
	return d, nil
}

// ListDoctors returns doctors ordered by name.
func (db *DB) ListDoctors(ctx context.Context, activeOnly bool) ([]model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list doctors", err)
	}
	defer rows.Close()

	var doctors []model.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, storageErr("scan doctor", err)
		}
		doctors = append(doctors, *d)
	}
	return doctors, storageErr("list doctors", rows.Err())
}

// SetDoctorActive soft-enables or disables a doctor.
func (db *DB) SetDoctorActive(ctx context.Context, id int64, active bool) error {
	res, err := db.ExecContext(ctx, `UPDATE doctors SET is_active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if err != nil {
		return storageErr("set doctor active", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("doctor %d: %w", id, model.ErrNotFound)
	}
	return nil
}
