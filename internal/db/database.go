package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the scheduling store.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
// Write transactions start IMMEDIATE so concurrent bookings serialize on
// the database lock instead of failing on upgrade.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	db := New(sqlDB, logger)
	db.path = path
	if err := db.createTables(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// New wraps an already opened connection without running migrations.
func New(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DB{DB: sqlDB, logger: logger}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS doctors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			specialty TEXT,
			timezone TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS availability_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doctor_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			increment_minutes INTEGER NOT NULL DEFAULT 30,
			source TEXT NOT NULL DEFAULT 'admin',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (doctor_id) REFERENCES doctors(id)
		)`,

		`CREATE TABLE IF NOT EXISTS closures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doctor_id INTEGER,
			date_from TEXT NOT NULL,
			date_to TEXT NOT NULL,
			reason_json TEXT NOT NULL DEFAULT '{}',
			source TEXT NOT NULL DEFAULT 'admin',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (doctor_id) REFERENCES doctors(id)
		)`,

		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doctor_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			customer_id TEXT,
			patient_name TEXT NOT NULL DEFAULT '',
			patient_email TEXT,
			patient_phone TEXT,
			source TEXT NOT NULL DEFAULT 'deposit',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (doctor_id) REFERENCES doctors(id)
		)`,

		`CREATE TABLE IF NOT EXISTS session_deposits (
			customer_id TEXT NOT NULL,
			doctor_id INTEGER NOT NULL,
			remaining_sessions INTEGER NOT NULL DEFAULT 0 CHECK (remaining_sessions >= 0),
			total_purchased INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (customer_id, doctor_id),
			FOREIGN KEY (doctor_id) REFERENCES doctors(id)
		)`,

		`CREATE TABLE IF NOT EXISTS deposit_payments (
			payment_ref TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			doctor_id INTEGER NOT NULL,
			sessions INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS manual_deposits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			customer_id TEXT NOT NULL,
			doctor_id INTEGER NOT NULL,
			sessions INTEGER NOT NULL CHECK (sessions > 0),
			status TEXT NOT NULL DEFAULT 'pending',
			note TEXT,
			decided_by TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME,
			FOREIGN KEY (doctor_id) REFERENCES doctors(id)
		)`,

		// Indexes
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_slot ON appointments(doctor_id, date, time)`,
		`CREATE INDEX IF NOT EXISTS idx_windows_doctor_date ON availability_windows(doctor_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_closures_range ON closures(date_from, date_to)`,
		`CREATE INDEX IF NOT EXISTS idx_manual_deposits_status ON manual_deposits(status)`,
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// withTx runs fn inside a transaction and commits when fn succeeds.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}
	return nil
}
