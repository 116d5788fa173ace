package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clinicbook/internal/model"
)

const manualDepositColumns = `id, reference, customer_id, doctor_id, sessions, status, note, decided_by, created_at, updated_at, decided_at`

func scanManualDeposit(row interface{ Scan(...any) error }) (*model.ManualDeposit, error) {
	var m model.ManualDeposit
	var status string
	var note, decidedBy sql.NullString
	var decidedAt sql.NullTime
	if err := row.Scan(
		&m.ID, &m.Reference, &m.CustomerID, &m.DoctorID, &m.Sessions, &status,
		&note, &decidedBy, &m.CreatedAt, &m.UpdatedAt, &decidedAt,
	); err != nil {
		return nil, err
	}
	m.Status = model.ManualDepositStatus(status)
	m.Note = note.String
	m.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		t := decidedAt.Time
		m.DecidedAt = &t
	}
	return &m, nil
}

// CreateManualDeposit stores a pending manual deposit with a fresh reference.
func (db *DB) CreateManualDeposit(ctx context.Context, m *model.ManualDeposit) error {
	if m == nil {
		return fmt.Errorf("manual deposit is nil")
	}
	if m.Sessions <= 0 {
		return fmt.Errorf("%w: sessions must be positive, got %d", model.ErrInvalidInput, m.Sessions)
	}
	if m.Reference == "" {
		m.Reference = uuid.NewString()
	}
	m.Status = model.ManualDepositPending

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO manual_deposits (reference, customer_id, doctor_id, sessions, status, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Reference, m.CustomerID, m.DoctorID, m.Sessions, string(m.Status), nullableString(m.Note), now, now,
	)
	if err != nil {
		return storageErr("create manual deposit", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

// GetManualDeposit returns a manual deposit by id or model.ErrNotFound.
func (db *DB) GetManualDeposit(ctx context.Context, id int64) (*model.ManualDeposit, error) {
	row := db.QueryRowContext(ctx, `SELECT `+manualDepositColumns+` FROM manual_deposits WHERE id = ?`, id)
	m, err := scanManualDeposit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manual deposit %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get manual deposit", err)
	}
	return m, nil
}

// ListManualDeposits returns manual deposits, optionally filtered by status,
// newest first.
func (db *DB) ListManualDeposits(ctx context.Context, status model.ManualDepositStatus) ([]model.ManualDeposit, error) {
	query := `SELECT ` + manualDepositColumns + ` FROM manual_deposits`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list manual deposits", err)
	}
	defer rows.Close()

	var deposits []model.ManualDeposit
	for rows.Next() {
		m, err := scanManualDeposit(rows)
		if err != nil {
			return nil, storageErr("scan manual deposit", err)
		}
		deposits = append(deposits, *m)
	}
	return deposits, storageErr("list manual deposits", rows.Err())
}

// DecideManualDeposit moves a pending deposit to next. Completing it credits
// the balance in the same transaction and returns the balance after the
// credit; the balance is nil otherwise.
func (db *DB) DecideManualDeposit(ctx context.Context, id int64, next model.ManualDepositStatus, decidedBy string) (*model.ManualDeposit, *model.SessionDeposit, error) {
	var (
		decided *model.ManualDeposit
		balance *model.SessionDeposit
	)
	err := db.withTx(ctx, "decide manual deposit", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+manualDepositColumns+` FROM manual_deposits WHERE id = ?`, id)
		m, err := scanManualDeposit(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("manual deposit %d: %w", id, model.ErrNotFound)
		}
		if err != nil {
			return storageErr("get manual deposit", err)
		}
		if !m.Status.CanTransition(next) {
			return fmt.Errorf("manual deposit %d %s -> %s: %w", id, m.Status, next, model.ErrInvalidTransition)
		}

		now := time.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE manual_deposits
			SET status = ?, decided_by = ?, decided_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(next), nullableString(decidedBy), now, now, id, string(m.Status),
		)
		if err != nil {
			return storageErr("update manual deposit", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("manual deposit %d: %w", id, model.ErrInvalidTransition)
		}

		if next == model.ManualDepositCompleted {
			if _, err := creditDeposit(ctx, tx, m.CustomerID, m.DoctorID, m.Sessions, "manual:"+m.Reference); err != nil {
				return err
			}
			if balance, err = getDeposit(ctx, tx, m.CustomerID, m.DoctorID); err != nil {
				return err
			}
		}

		m.Status = next
		m.DecidedBy = decidedBy
		m.DecidedAt = &now
		m.UpdatedAt = now
		decided = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return decided, balance, nil
}
