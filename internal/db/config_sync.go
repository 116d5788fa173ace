package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clinicbook/internal/config"
	"clinicbook/internal/model"
)

// SyncScheduleFromConfig applies schedule.yaml to the database.
// It upserts doctors, marks doctors missing from the file inactive and
// replaces every config-sourced window and closure. Admin-authored rows
// are left alone.
func (db *DB) SyncScheduleFromConfig(ctx context.Context, cfg *config.ScheduleConfig) error {
	if cfg == nil {
		return fmt.Errorf("schedule config is nil")
	}

	return db.withTx(ctx, "sync schedule", func(tx *sql.Tx) error {
		now := time.Now()
		seen := make(map[int64]struct{})

		for _, d := range cfg.Doctors {
			// Preserve created_at if the doctor already exists.
			_, err := tx.ExecContext(ctx, `
				INSERT INTO doctors (id, name, specialty, timezone, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM doctors WHERE id = ?), ?), ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					specialty = excluded.specialty,
					timezone = excluded.timezone,
					is_active = excluded.is_active,
					updated_at = excluded.updated_at`,
				d.ID, d.Name, d.Specialty, d.Timezone, d.IsActive, d.ID, now, now,
			)
			if err != nil {
				return storageErr(fmt.Sprintf("sync doctor %d", d.ID), err)
			}
			seen[d.ID] = struct{}{}
		}

		// Deactivate doctors that disappeared from config.
		ids, err := doctorIDs(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE doctors SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
				return storageErr(fmt.Sprintf("deactivate doctor %d", id), err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE source = ?`, model.SourceConfig); err != nil {
			return storageErr("clear config windows", err)
		}
		for i, w := range cfg.Windows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO availability_windows (
					doctor_id, date, start_time, end_time, increment_minutes, source, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				w.DoctorID, w.Date, w.StartTime, w.EndTime, w.IncrementMinutes, model.SourceConfig, now, now,
			)
			if err != nil {
				return storageErr(fmt.Sprintf("sync window %d", i), err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM closures WHERE source = ?`, model.SourceConfig); err != nil {
			return storageErr("clear config closures", err)
		}
		for i, c := range cfg.Closures {
			reasons, err := encodeReasons(c.Reasons)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO closures (doctor_id, date_from, date_to, reason_json, source, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				nullableID(c.DoctorID), c.From, c.To, reasons, model.SourceConfig, now,
			)
			if err != nil {
				return storageErr(fmt.Sprintf("sync closure %d", i), err)
			}
		}

		return nil
	})
}

func doctorIDs(ctx context.Context, tx *sql.Tx) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM doctors`)
	if err != nil {
		return nil, storageErr("list doctor ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan doctor id", err)
		}
		ids = append(ids, id)
	}
	return ids, storageErr("list doctor ids", rows.Err())
}
