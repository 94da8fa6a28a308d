package sheet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Store mediates every read and write of contact rows. It keeps no copy of the data: each
// call re-reads the backend, so edits made directly in the spreadsheet are always seen.
//
// Writes are serialized per contact name inside one process only. Two processes (or a human
// editing the sheet) can still race on the same row; the last write wins.
type Store struct {
	backend       Backend
	schema        contact.Schema
	logger        logger.Logger
	metrics       *metrics.Metrics
	timeout       time.Duration
	strictReplace bool
	locks         *keyedMutex
}

type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithTimeout bounds every backend round trip made by a single store operation.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithStrictReplace makes overwriting updates require an exact normalized name match that
// identifies a single row. Appends keep the first-match rule.
func WithStrictReplace() Option {
	return func(s *Store) { s.strictReplace = true }
}

func New(backend Backend, schema contact.Schema, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		schema:  schema,
		logger:  logger.NoOp(),
		timeout: defaultTimeout,
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Schema() contact.Schema {
	return s.schema
}

// Headers returns the store's current header row.
func (s *Store) Headers(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	headers, err := s.backend.ReadHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading header row: %w", err)
	}
	return headers, nil
}

// Records reads the whole table. It never fails: an unreachable or empty table yields no
// records and the failure is logged.
func (s *Store) Records(ctx context.Context) []contact.Record {
	records, _, err := s.read(ctx)
	if err != nil {
		s.logger.Error("error fetching records: %v", err)
		s.metrics.StoreFailure("records", FailureBackend.String())
		return []contact.Record{}
	}
	return records
}

// SearchByName returns every record whose name fuzzily contains name, in table order.
func (s *Store) SearchByName(ctx context.Context, name string) []contact.Record {
	return s.SearchByField(ctx, s.schema.Header(contact.FieldName), name)
}

// SearchByField applies the fuzzy rule to the column labelled header.
func (s *Store) SearchByField(ctx context.Context, header, value string) []contact.Record {
	needle := contact.Normalize(value)
	matches := []contact.Record{}
	for _, r := range s.Records(ctx) {
		if strings.Contains(contact.Normalize(r.Get(header)), needle) {
			matches = append(matches, r)
		}
	}
	return matches
}

// Find resolves name to a single record: an exact normalized match wins, otherwise the first
// fuzzy match.
func (s *Store) Find(ctx context.Context, name string) (contact.Record, bool) {
	matches := s.SearchByName(ctx, name)
	if len(matches) == 0 {
		return contact.Record{}, false
	}
	key := contact.Normalize(name)
	for _, m := range matches {
		if contact.Normalize(m.Name(s.schema)) == key {
			return m, true
		}
	}
	return matches[0], true
}

// UpdateField sets the cell in column header of the row matching name. With appendValue the
// new text goes on a fresh line below any existing content; otherwise the cell is overwritten.
//
// When several rows match, only the first one in table order is touched (an exact normalized
// match takes precedence over a substring match).
func (s *Store) UpdateField(ctx context.Context, name, header, value string, appendValue bool) Result {
	res := s.updateField(ctx, name, header, value, appendValue)
	if !res.OK() {
		s.metrics.StoreFailure("update_field", res.Kind.String())
		if res.Kind == FailureBackend {
			s.logger.Error("error updating %q for %q: %v", header, name, res.Err)
		} else {
			s.logger.Info("update of %q for %q not applied: %s", header, name, res.Kind)
		}
		return res
	}
	s.logger.Info("updated %q for %q (row %d, append=%t)", header, name, res.Row, appendValue)
	return res
}

func (s *Store) updateField(ctx context.Context, name, header, value string, appendValue bool) Result {
	key := contact.Normalize(name)
	if key == "" {
		return fail(FailureInvalid, errors.New("empty name"))
	}
	unlock := s.locks.lock(key)
	defer unlock()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.backend.ReadAll(ctx)
	if err != nil {
		return fail(FailureBackend, err)
	}
	if len(rows) == 0 {
		return fail(FailureUnknownField, fmt.Errorf("no header row"))
	}
	headers := rows[0]
	col := slices.Index(headers, header) + 1
	if col == 0 {
		return fail(FailureUnknownField, fmt.Errorf("field %q not found in headers", header))
	}
	nameCol := slices.Index(headers, s.schema.Header(contact.FieldName)) + 1
	if nameCol == 0 {
		return fail(FailureUnknownField, fmt.Errorf("name column %q not found in headers", s.schema.Header(contact.FieldName)))
	}
	row, kind := s.resolveRow(rows, nameCol, key, !appendValue && s.strictReplace)
	if kind != FailureNone {
		return fail(kind, fmt.Errorf("no unique row for %q", name))
	}
	if appendValue {
		current, err := s.backend.ReadCell(ctx, row, col)
		if err != nil {
			return fail(FailureBackend, err)
		}
		if current != "" {
			value = current + "\n" + value
		}
	}
	if err := s.backend.WriteCell(ctx, row, col, value); err != nil {
		return fail(FailureBackend, err)
	}
	return ok(row)
}

// resolveRow picks the 1-based sheet row for key: first exact normalized match, else first
// substring match. In strict mode only a single exact match is accepted.
func (s *Store) resolveRow(rows [][]string, nameCol int, key string, strict bool) (int, FailureKind) {
	cell := func(r []string) string {
		if nameCol-1 < len(r) {
			return contact.Normalize(r[nameCol-1])
		}
		return ""
	}
	exact, fuzzy := []int{}, []int{}
	for i, r := range rows[1:] {
		v := cell(r)
		if v == "" {
			continue
		}
		if v == key {
			exact = append(exact, i+2)
		}
		if strings.Contains(v, key) {
			fuzzy = append(fuzzy, i+2)
		}
	}
	switch {
	case strict && len(exact) == 1:
		return exact[0], FailureNone
	case strict && (len(exact) > 1 || len(fuzzy) > 0):
		return 0, FailureAmbiguous
	case len(exact) > 0:
		return exact[0], FailureNone
	case len(fuzzy) > 0:
		return fuzzy[0], FailureNone
	default:
		return 0, FailureNotFound
	}
}

// AddRecord appends values as a new row. The row is laid out after the store's current header
// row; headers without a value are written empty and keys that are not headers are ignored.
func (s *Store) AddRecord(ctx context.Context, values map[string]string) Result {
	name := values[s.schema.Header(contact.FieldName)]
	unlock := s.locks.lock(contact.Normalize(name))
	defer unlock()
	return s.observeAdd(name, s.addRecord(ctx, values))
}

// AddRecordIfAbsent appends values unless a record whose name fuzzily matches the new name
// already exists; those matches are returned with a FailureExists result.
func (s *Store) AddRecordIfAbsent(ctx context.Context, values map[string]string) (Result, []contact.Record) {
	name := values[s.schema.Header(contact.FieldName)]
	unlock := s.locks.lock(contact.Normalize(name))
	defer unlock()
	if contact.Normalize(name) == "" {
		return s.observeAdd(name, fail(FailureInvalid, errors.New("empty name"))), nil
	}
	records, _, err := s.read(ctx)
	if err != nil {
		return s.observeAdd(name, fail(FailureBackend, err)), nil
	}
	var existing []contact.Record
	for _, r := range records {
		if contact.Matches(name, r.Name(s.schema)) {
			existing = append(existing, r)
		}
	}
	if len(existing) > 0 {
		return s.observeAdd(name, fail(FailureExists, fmt.Errorf("%d matching records", len(existing)))), existing
	}
	return s.observeAdd(name, s.addRecord(ctx, values)), nil
}

func (s *Store) addRecord(ctx context.Context, values map[string]string) Result {
	nameHeader := s.schema.Header(contact.FieldName)
	if contact.Normalize(values[nameHeader]) == "" {
		return fail(FailureInvalid, errors.New("empty name"))
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	headers, err := s.backend.ReadHeader(ctx)
	if err != nil {
		return fail(FailureBackend, err)
	}
	if !slices.Contains(headers, nameHeader) {
		return fail(FailureUnknownField, fmt.Errorf("name column %q not found in headers", nameHeader))
	}
	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = values[h]
	}
	if err := s.backend.AppendRow(ctx, row); err != nil {
		return fail(FailureBackend, err)
	}
	return ok(0)
}

func (s *Store) observeAdd(name string, res Result) Result {
	switch {
	case res.OK():
		s.logger.Info("added new record for %q", name)
	case res.Kind == FailureBackend:
		s.logger.Error("error adding record for %q: %v", name, res.Err)
		s.metrics.StoreFailure("add_record", res.Kind.String())
	default:
		s.logger.Info("record for %q not added: %s", name, res.Kind)
		s.metrics.StoreFailure("add_record", res.Kind.String())
	}
	return res
}

func (s *Store) read(ctx context.Context) ([]contact.Record, []string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.backend.ReadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return []contact.Record{}, nil, nil
	}
	headers := rows[0]
	records := make([]contact.Record, 0, len(rows)-1)
	for i, values := range rows[1:] {
		r := contact.NewRecord(i+2, headers, values)
		if r.Blank() {
			continue
		}
		records = append(records, r)
	}
	return records, headers, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// keyed mutex -------------------------------------------------------------------------------------

type keyedMutex struct {
	mux   sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedLock{}}
}

func (k *keyedMutex) lock(key string) func() {
	k.mux.Lock()
	l, found := k.locks[key]
	if !found {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mux.Unlock()
	l.Lock()
	return func() {
		l.Unlock()
		k.mux.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mux.Unlock()
	}
}
