package sheet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Backend is the raw tabular store the contacts live in. Row 1 is the header row; rows and
// columns are 1-based, like in a spreadsheet UI.
type Backend interface {
	// ReadAll returns every row including the header row. Trailing empty cells may be omitted.
	ReadAll(ctx context.Context) ([][]string, error)
	ReadHeader(ctx context.Context) ([]string, error)
	ReadCell(ctx context.Context, row, col int) (string, error)
	WriteCell(ctx context.Context, row, col int, value string) error
	AppendRow(ctx context.Context, values []string) error
}

var ErrOutOfRange = errors.New("cell out of range")

// memory ------------------------------------------------------------------------------------------

var _ Backend = (*Memory)(nil)

// Memory is an in-process Backend. It backs tests and the memory demo mode.
type Memory struct {
	mux  sync.RWMutex
	rows [][]string
	err  error
}

func NewMemory(header []string, rows ...[]string) *Memory {
	m := &Memory{rows: [][]string{slices.Clone(header)}}
	for _, r := range rows {
		m.rows = append(m.rows, slices.Clone(r))
	}
	return m
}

// SetError makes every following call fail with err until it is cleared with nil.
func (m *Memory) SetError(err error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.err = err
}

// Rows returns a deep copy of the table, header row included.
func (m *Memory) Rows() [][]string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = slices.Clone(r)
	}
	return out
}

func (m *Memory) ReadAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	err := m.err
	m.mux.RUnlock()
	if err != nil {
		return nil, err
	}
	return m.Rows(), nil
}

func (m *Memory) ReadHeader(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.rows) == 0 {
		return nil, nil
	}
	return slices.Clone(m.rows[0]), nil
}

func (m *Memory) ReadCell(ctx context.Context, row, col int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	if row < 1 || col < 1 {
		return "", fmt.Errorf("%w: row %d col %d", ErrOutOfRange, row, col)
	}
	if row > len(m.rows) || col > len(m.rows[row-1]) {
		return "", nil
	}
	return m.rows[row-1][col-1], nil
}

func (m *Memory) WriteCell(ctx context.Context, row, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.err != nil {
		return m.err
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ErrOutOfRange, row, col)
	}
	for len(m.rows) < row {
		m.rows = append(m.rows, nil)
	}
	for len(m.rows[row-1]) < col {
		m.rows[row-1] = append(m.rows[row-1], "")
	}
	m.rows[row-1][col-1] = value
	return nil
}

func (m *Memory) AppendRow(ctx context.Context, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, slices.Clone(values))
	return nil
}
