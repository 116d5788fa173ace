// Package audit exports the scheduling tables into an xlsx workbook.
package audit

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet names.
const maxSheetName = 31

var errNoSheet = errors.New("no active sheet")

// Writer builds a workbook one sheet at a time.
type Writer struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewWriter creates an empty workbook.
func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// AddSheet starts a new sheet and makes it current.
func (w *Writer) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.currentSheet == "" {
		// Reuse the default sheet of a new workbook.
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *Writer) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
	_ = w.file.SetCellStyle(w.currentSheet, start, end, style)
	return nil
}

// WriteRow appends a row to the current sheet.
func (w *Writer) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return errNoSheet
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.currentRow, err)
	}
	w.currentRow++
	return nil
}

// Save writes the workbook to wr.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// SaveToFile writes the workbook to disk.
func (w *Writer) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}
