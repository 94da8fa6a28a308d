package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2/google"
)

const (
	sheetsBaseURL = "https://sheets.googleapis.com"
	sheetsScope   = "https://www.googleapis.com/auth/spreadsheets"
)

var _ Backend = (*GSheets)(nil)

// GSheets is a Backend over one worksheet of a Google spreadsheet, spoken to through the
// Sheets REST API (v4). Values are always written raw so that phone numbers keep their
// leading "+" and are not parsed as formulas.
type GSheets struct {
	client        *http.Client
	baseURL       string
	spreadsheetID string

	mux   sync.Mutex
	sheet string
}

type GSheetsOption func(*GSheets)

func WithHTTPClient(c *http.Client) GSheetsOption {
	return func(g *GSheets) { g.client = c }
}

func WithBaseURL(u string) GSheetsOption {
	return func(g *GSheets) { g.baseURL = strings.TrimRight(u, "/") }
}

// NewGSheets returns a backend for spreadsheetID. An empty sheet selects the first worksheet,
// resolved on first use.
func NewGSheets(spreadsheetID, sheet string, opts ...GSheetsOption) *GSheets {
	g := &GSheets{
		client:        &http.Client{Timeout: 60 * time.Second},
		baseURL:       sheetsBaseURL,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GoogleClient builds an HTTP client authorized as the service account described by the
// JSON key file at path.
func GoogleClient(ctx context.Context, path string) (*http.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading credentials file: %w", err)
	}
	config, err := google.JWTConfigFromJSON(data, sheetsScope)
	if err != nil {
		return nil, fmt.Errorf("error parsing credentials file: %w", err)
	}
	return config.Client(ctx), nil
}

func (g *GSheets) ReadAll(ctx context.Context) ([][]string, error) {
	title, err := g.title(ctx)
	if err != nil {
		return nil, err
	}
	return g.values(ctx, quoteSheet(title))
}

func (g *GSheets) ReadHeader(ctx context.Context) ([]string, error) {
	title, err := g.title(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := g.values(ctx, quoteSheet(title)+"!1:1")
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (g *GSheets) ReadCell(ctx context.Context, row, col int) (string, error) {
	rng, err := g.cellRange(ctx, row, col)
	if err != nil {
		return "", err
	}
	rows, err := g.values(ctx, rng)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}

func (g *GSheets) WriteCell(ctx context.Context, row, col int, value string) error {
	rng, err := g.cellRange(ctx, row, col)
	if err != nil {
		return err
	}
	body := gsheets_ValueRange{Range: rng, MajorDimension: "ROWS", Values: [][]string{{value}}}
	endpoint := g.valuesURL(rng, "") + "?valueInputOption=RAW"
	_, err = g.do(ctx, http.MethodPut, endpoint, body)
	return err
}

func (g *GSheets) AppendRow(ctx context.Context, values []string) error {
	title, err := g.title(ctx)
	if err != nil {
		return err
	}
	rng := quoteSheet(title)
	body := gsheets_ValueRange{Range: rng, MajorDimension: "ROWS", Values: [][]string{values}}
	endpoint := g.valuesURL(rng, ":append") + "?valueInputOption=RAW&insertDataOption=INSERT_ROWS"
	_, err = g.do(ctx, http.MethodPost, endpoint, body)
	return err
}

func (g *GSheets) title(ctx context.Context) (string, error) {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.sheet != "" {
		return g.sheet, nil
	}
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties.title",
		g.baseURL, url.PathEscape(g.spreadsheetID))
	data, err := g.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	title := gjson.GetBytes(data, "sheets.0.properties.title").String()
	if title == "" {
		return "", fmt.Errorf("spreadsheet %s has no worksheets", g.spreadsheetID)
	}
	g.sheet = title
	return title, nil
}

func (g *GSheets) values(ctx context.Context, rng string) ([][]string, error) {
	data, err := g.do(ctx, http.MethodGet, g.valuesURL(rng, ""), nil)
	if err != nil {
		return nil, err
	}
	rows := [][]string{}
	for _, r := range gjson.GetBytes(data, "values").Array() {
		cells := r.Array()
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = c.String()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *GSheets) cellRange(ctx context.Context, row, col int) (string, error) {
	cell, err := cellName(row, col)
	if err != nil {
		return "", err
	}
	title, err := g.title(ctx)
	if err != nil {
		return "", err
	}
	return quoteSheet(title) + "!" + cell, nil
}

func (g *GSheets) valuesURL(rng, suffix string) string {
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s%s",
		g.baseURL, url.PathEscape(g.spreadsheetID), url.PathEscape(rng), suffix)
}

func (g *GSheets) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshalling request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling sheets api: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = string(data)
		}
		return nil, fmt.Errorf("non-ok status (%d) from sheets api: %s", resp.StatusCode, msg)
	}
	return data, nil
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// helper types ------------------------------------------------------------------------------------

type gsheets_ValueRange struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}
