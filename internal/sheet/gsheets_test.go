package sheet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeSheets serves the subset of the Sheets values API used by GSheets over an in-memory
// table for the worksheet "Contactos".
type fakeSheets struct {
	mux      sync.Mutex
	table    *Memory
	requests []string
	failWith int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`)) //nolint:errcheck
		return
	}
	ctx := r.Context()
	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id")
	if path == "" {
		w.Write([]byte(`{"sheets":[{"properties":{"title":"Contactos"}},{"properties":{"title":"Otra"}}]}`)) //nolint:errcheck
		return
	}
	rng, appendRow := strings.CutSuffix(strings.TrimPrefix(path, "/values/"), ":append")
	title, cell, _ := strings.Cut(rng, "!")
	if title != "'Contactos'" {
		http.Error(w, `{"error":{"message":"unable to parse range"}}`, http.StatusBadRequest)
		return
	}
	var body gsheets_ValueRange
	if r.Method != http.MethodGet {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	var values [][]string
	switch {
	case appendRow:
		f.table.AppendRow(ctx, body.Values[0]) //nolint:errcheck
	case cell == "":
		values, _ = f.table.ReadAll(ctx)
	case cell == "1:1":
		header, _ := f.table.ReadHeader(ctx)
		values = [][]string{header}
	default:
		col, row, err := excelize.CellNameToCoordinates(cell)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Method == http.MethodPut {
			f.table.WriteCell(ctx, row, col, body.Values[0][0]) //nolint:errcheck
		} else if v, _ := f.table.ReadCell(ctx, row, col); v != "" {
			values = [][]string{{v}}
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values}) //nolint:errcheck
}

func newFakeSheets(t *testing.T, rows ...[]string) (*fakeSheets, *GSheets) {
	t.Helper()
	fake := &fakeSheets{table: NewMemory(headers, rows...)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, NewGSheets("sheet-id", "", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestGSheetsStore(t *testing.T) {
	fake, backend := newFakeSheets(t, []string{"Pablo Salomón", "+54 11 5555"})
	store := New(backend, contact.DefaultSchema)
	ctx := context.Background()

	records := store.SearchByName(ctx, "salomon")
	require.Len(t, records, 1)
	assert.Equal(t, "+54 11 5555", records[0].Get("Teléfono"))

	require.True(t, store.UpdateField(ctx, "pablo", "bio", "Inversor", true).OK())
	require.True(t, store.UpdateField(ctx, "pablo", "bio", "Le gusta el golf", true).OK())
	require.True(t, store.AddRecord(ctx, map[string]string{"Nombre": "Ana Gómez", "Rol": "CTO"}).OK())

	rows := fake.table.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "Inversor\nLe gusta el golf", rows[1][6])
	assert.Equal(t, []string{"Ana Gómez", "", "", "", "", "CTO", "", ""}, rows[2])

	var writes int
	for _, r := range fake.requests {
		if strings.HasPrefix(r, "PUT") {
			writes++
			assert.Contains(t, r, "valueInputOption=RAW")
		}
		if strings.HasPrefix(r, "POST") {
			assert.Contains(t, r, "insertDataOption=INSERT_ROWS")
		}
	}
	assert.Equal(t, 2, writes)
	// the worksheet title is looked up once
	assert.Equal(t, "GET /v4/spreadsheets/sheet-id?fields=sheets.properties.title", fake.requests[0])
	for _, r := range fake.requests[1:] {
		assert.NotContains(t, r, "fields=")
	}
}

func TestGSheetsErrors(t *testing.T) {
	fake, backend := newFakeSheets(t)
	fake.failWith = http.StatusForbidden
	_, err := backend.ReadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The caller does not have permission")

	store := New(backend, contact.DefaultSchema)
	assert.Empty(t, store.Records(context.Background()))
	assert.Equal(t, FailureBackend, store.UpdateField(context.Background(), "x", "bio", "y", false).Kind)
}

func TestGSheetsNamedSheet(t *testing.T) {
	fake := &fakeSheets{table: NewMemory(headers, []string{"Luis"})}
	server := httptest.NewServer(fake)
	defer server.Close()
	backend := NewGSheets("sheet-id", "Otra", WithBaseURL(server.URL))
	_, err := backend.ReadAll(context.Background())
	assert.Error(t, err)
	backend = NewGSheets("sheet-id", "Contactos", WithBaseURL(server.URL))
	header, err := backend.ReadHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, headers, header)
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Hoja 1'", quoteSheet("Hoja 1"))
	assert.Equal(t, "'Pablo''s'", quoteSheet("Pablo's"))
}
