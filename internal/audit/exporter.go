package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// TableSource provides the tables to export.
type TableSource interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]any, []string, error)
}

// Filename names the report covering the month of t.
func Filename(t time.Time) string {
	return fmt.Sprintf("clinicbook_audit_%s.xlsx", t.Format("2006-01"))
}

// Exporter writes every audit table into its own sheet.
type Exporter struct {
	source TableSource
	logger zerolog.Logger
	now    func() time.Time
}

// NewExporter creates an exporter over source.
func NewExporter(source TableSource, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		source: source,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Export writes the workbook to wr. A table that fails to load is logged and
// skipped so one bad table does not lose the whole report.
func (e *Exporter) Export(ctx context.Context, wr io.Writer) error {
	tables, err := e.source.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}

	excel := NewWriter()
	defer excel.Close()

	written := 0
	for _, table := range tables {
		data, columns, err := e.source.GetTableData(ctx, table)
		if err != nil {
			e.logger.Error().Err(err).Str("table", table).Msg("Failed to get table data")
			continue
		}
		if err := excel.AddSheet(table); err != nil {
			return err
		}
		if err := excel.WriteHeader(columns); err != nil {
			return fmt.Errorf("write header %s: %w", table, err)
		}
		for _, row := range data {
			values := make([]any, len(columns))
			for i, col := range columns {
				values[i] = cellValue(row[col])
			}
			if err := excel.WriteRow(values); err != nil {
				return fmt.Errorf("write %s: %w", table, err)
			}
		}
		written++
		e.logger.Debug().Str("table", table).Int("rows", len(data)).Msg("Exported table")
	}

	if written == 0 {
		return fmt.Errorf("no tables exported")
	}
	if err := excel.Save(wr); err != nil {
		return fmt.Errorf("save excel: %w", err)
	}
	return nil
}

// ExportToDir writes the report named after month into dir and returns its
// path.
func (e *Exporter) ExportToDir(ctx context.Context, dir string, month time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audit dir: %w", err)
	}
	path := filepath.Join(dir, Filename(month))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audit file: %w", err)
	}
	if err := e.Export(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	e.logger.Info().Str("path", path).Msg("Audit report written")
	return path, nil
}

// Start writes a report into dir on the first of every month until ctx is
// done.
func (e *Exporter) Start(ctx context.Context, dir string) {
	timer := time.NewTimer(time.Until(nextFirstOfMonth(e.now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// Fires just after midnight on the 1st: name the month that ended.
			if _, err := e.ExportToDir(ctx, dir, e.now().AddDate(0, 0, -1)); err != nil {
				e.logger.Error().Err(err).Msg("Failed to export audit report")
			}
			next := nextFirstOfMonth(e.now())
			timer.Reset(time.Until(next))
			e.logger.Info().Time("next_run", next).Msg("Next audit scheduled")
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// cellValue turns driver values into something excelize renders as text.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return x
	}
}
