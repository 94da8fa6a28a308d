package sheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

var _ Backend = (*XLSX)(nil)

// XLSX is a Backend over a local workbook. The file is reopened on every call so that edits
// made in a spreadsheet application between calls are picked up.
type XLSX struct {
	mux   sync.Mutex
	path  string
	sheet string
}

// NewXLSX returns a backend over path. An empty sheet selects the first worksheet.
func NewXLSX(path, sheet string) *XLSX {
	return &XLSX{path: path, sheet: sheet}
}

// InitXLSX creates a workbook at path holding only header in its first row. It refuses to
// overwrite an existing file.
func InitXLSX(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow(f.GetSheetName(0), "A1", &header); err != nil {
		return fmt.Errorf("error writing header row: %w", err)
	}
	return f.SaveAs(path)
}

func (x *XLSX) ReadAll(ctx context.Context) ([][]string, error) {
	var rows [][]string
	err := x.with(ctx, false, func(f *excelize.File, sheet string) error {
		var err error
		rows, err = f.GetRows(sheet)
		return err
	})
	return rows, err
}

func (x *XLSX) ReadHeader(ctx context.Context) ([]string, error) {
	rows, err := x.ReadAll(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (x *XLSX) ReadCell(ctx context.Context, row, col int) (string, error) {
	cell, err := cellName(row, col)
	if err != nil {
		return "", err
	}
	var value string
	err = x.with(ctx, false, func(f *excelize.File, sheet string) error {
		var err error
		value, err = f.GetCellValue(sheet, cell)
		return err
	})
	return value, err
}

func (x *XLSX) WriteCell(ctx context.Context, row, col int, value string) error {
	cell, err := cellName(row, col)
	if err != nil {
		return err
	}
	return x.with(ctx, true, func(f *excelize.File, sheet string) error {
		return f.SetCellStr(sheet, cell, value)
	})
}

func (x *XLSX) AppendRow(ctx context.Context, values []string) error {
	return x.with(ctx, true, func(f *excelize.File, sheet string) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		cell, err := cellName(len(rows)+1, 1)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	})
}

func (x *XLSX) with(ctx context.Context, save bool, fn func(*excelize.File, string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mux.Lock()
	defer x.mux.Unlock()
	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return fmt.Errorf("error opening workbook: %w", err)
	}
	defer f.Close()
	sheet := x.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return fmt.Errorf("worksheet %q not found", sheet)
	}
	if err := fn(f, sheet); err != nil {
		return err
	}
	if save {
		return f.Save()
	}
	return nil
}

func cellName(row, col int) (string, error) {
	if row < 1 || col < 1 {
		return "", fmt.Errorf("%w: row %d col %d", ErrOutOfRange, row, col)
	}
	return excelize.CoordinatesToCellName(col, row)
}
