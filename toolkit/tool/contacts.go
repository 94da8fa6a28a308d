package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
	"github.com/markusylisiurunen/rolodex/internal/sheet"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

// Store is the part of the contacts store the tools need.
type Store interface {
	Schema() contact.Schema
	Records(ctx context.Context) []contact.Record
	SearchByName(ctx context.Context, name string) []contact.Record
	SearchByField(ctx context.Context, header, value string) []contact.Record
	UpdateField(ctx context.Context, name, header, value string, appendValue bool) sheet.Result
	AddRecordIfAbsent(ctx context.Context, values map[string]string) (sheet.Result, []contact.Record)
}

var _ Store = (*sheet.Store)(nil)

const DefaultTimezone = "America/Argentina/Buenos_Aires"

type env struct {
	store    Store
	catalog  *locale.Catalog
	logger   logger.Logger
	metrics  *metrics.Metrics
	location *time.Location
	now      func() time.Time
}

type Option func(*env)

func WithLogger(l logger.Logger) Option {
	return func(e *env) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *env) { e.metrics = m }
}

// WithLocation sets the civil timezone get_current_time reports in.
func WithLocation(loc *time.Location) Option {
	return func(e *env) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// Contacts returns the full tool manifest over store, in the order it is advertised to the
// model.
func Contacts(store Store, catalog *locale.Catalog, opts ...Option) []llm.Tool {
	e := &env{
		store:    store,
		catalog:  catalog,
		logger:   logger.NoOp(),
		location: time.UTC,
		now:      time.Now,
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		e.location = loc
	}
	for _, opt := range opts {
		opt(e)
	}
	return []llm.Tool{
		&searchTool{env: e, name: "search_by_name", field: contact.FieldName, param: "name"},
		&searchTool{env: e, name: "search_by_company", field: contact.FieldCompany, param: "company"},
		&searchTool{env: e, name: "search_by_role", field: contact.FieldRole, param: "role"},
		&listTool{env: e},
		&timeTool{env: e},
		&updateTool{env: e, name: "update_phone", field: contact.FieldPhone, param: "phone"},
		&updateTool{env: e, name: "update_email", field: contact.FieldEmail, param: "email"},
		&updateTool{env: e, name: "update_telegram", field: contact.FieldMessagingHandle, param: "telegram"},
		&updateTool{env: e, name: "update_company", field: contact.FieldCompany, param: "company"},
		&updateTool{env: e, name: "update_role", field: contact.FieldRole, param: "role"},
		&updateTool{env: e, name: "update_bio", field: contact.FieldBio, param: "content", mode: appendByDefault},
		&updateTool{env: e, name: "add_to_log", field: contact.FieldLog, param: "entry", mode: appendAlways},
		&addContactTool{env: e},
	}
}

// helpers -----------------------------------------------------------------------------------------

func (e *env) text(tool, outcome, msg string) (string, error) {
	e.metrics.ToolCall(tool, outcome)
	return msg, nil
}

func (e *env) formatError(tool string, params []string) (string, error) {
	e.logger.Warn("%s called with malformed arguments", tool)
	return e.text(tool, "invalid", e.catalog.Sprintf("tool.error.format", strings.Join(params, "|")))
}

// records renders records as an indented JSON list, with placeholders for empty phone and
// email.
func (e *env) records(records []contact.Record) (string, error) {
	schema := e.store.Schema()
	presented := make([]contact.Record, len(records))
	for i, r := range records {
		presented[i] = contact.Present(r, schema, e.catalog.Placeholder())
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(presented); err != nil {
		return "", fmt.Errorf("failed to marshal records to JSON: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// failure maps an unsuccessful store result onto the localized message the model sees.
func (e *env) failure(tool, name, header string, res sheet.Result) (string, error) {
	var msg string
	switch res.Kind {
	case sheet.FailureNotFound:
		msg = e.catalog.Sprintf("tool.error.not_found", name)
	case sheet.FailureAmbiguous:
		msg = e.catalog.Sprintf("tool.error.ambiguous", name)
	case sheet.FailureUnknownField:
		msg = e.catalog.Sprintf("tool.error.unknown_field", header)
	case sheet.FailureInvalid:
		msg = e.catalog.Sprintf("tool.error.invalid", name)
	default:
		msg = e.catalog.Text("tool.error.backend")
	}
	return e.text(tool, res.Kind.String(), msg)
}

func (e *env) description(tool string) string {
	return e.catalog.Text("tool." + tool + ".description")
}
