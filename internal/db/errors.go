package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"clinicbook/internal/model"
)

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY conflict.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// isTransient reports whether retrying the whole operation may succeed.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// storageErr wraps err with op and tags busy, locked and timed-out
// statements with model.ErrTransient.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, model.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
