package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// AuditTableNames are exported in audit reports.
var AuditTableNames = []string{
	"doctors",
	"availability_windows",
	"closures",
	"appointments",
	"session_deposits",
	"deposit_payments",
	"manual_deposits",
}

// GetTableNames returns list of table names to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return AuditTableNames, nil
}

// GetTableData returns all rows from a table as maps.
func (db *DB) GetTableData(ctx context.Context, tableName string) (data []map[string]any, columns []string, err error) {
	// Only whitelisted names reach the query text.
	if !slices.Contains(AuditTableNames, tableName) {
		return nil, nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, nil, storageErr("table info", err)
	}
	for rows.Next() {
		var cid int
		var name, typeName string
		var notNull, pk int
		var dfltValue sql.NullString
		if err = rows.Scan(&cid, &name, &typeName, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return nil, nil, err
		}
		columns = append(columns, name)
	}
	rows.Close()

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("table %s has no columns", tableName)
	}

	dataRows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, storageErr("select "+tableName, err)
	}
	defer dataRows.Close()

	for dataRows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err = dataRows.Scan(valuePtrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		data = append(data, row)
	}

	return data, columns, dataRows.Err()
}
