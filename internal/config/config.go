package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
)

type Backend string

const (
	BackendGSheets Backend = "gsheets"
	BackendXLSX    Backend = "xlsx"
	BackendMemory  Backend = "memory"
)

// Part names a group of settings a command depends on.
type Part string

const (
	PartTelegram   Part = "telegram"
	PartLLM        Part = "llm"
	PartTranscribe Part = "transcribe"
	PartSheet      Part = "sheet"
)

type Config struct {
	Debug    bool
	LogLevel string
	LogFile  string

	TelegramToken string
	ListenAddr    string
	WebhookSecret string

	OpenAIKey      string
	LLMKey         string
	LLMBaseURL     string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	MaxIterations  int
	HistoryTurns   int

	Language string
	Timezone string

	SheetBackend    Backend
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	XLSXPath        string
	StoreTimeout    time.Duration
	StrictReplace   bool

	TranscribeModel   string
	TranscribeTimeout time.Duration
}

// LoadDotEnv loads the given files, or .env in the working directory when none are given.
// Missing files are skipped and variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("error loading %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}
	c := Config{
		Debug:    r.bool("DEBUG", false),
		LogLevel: r.string("LOG_LEVEL", "info"),
		LogFile:  r.string("LOG_FILE", ""),

		TelegramToken: r.string("TELEGRAM_API", ""),
		ListenAddr:    r.string("LISTEN_ADDR", ":8080"),
		WebhookSecret: r.string("WEBHOOK_SECRET", ""),

		OpenAIKey:      r.string("OPENAI_API_KEY", ""),
		LLMBaseURL:     r.string("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:       r.string("LLM_MODEL", "gpt-4o"),
		LLMTemperature: r.float("LLM_TEMPERATURE", 0),
		LLMMaxTokens:   r.int("LLM_MAX_TOKENS", 4096),
		LLMTimeout:     r.duration("LLM_TIMEOUT", 60*time.Second),
		MaxIterations:  r.int("MAX_ITERATIONS", 5),
		HistoryTurns:   r.int("HISTORY_TURNS", 0),

		Language: r.string("LANGUAGE", locale.Default),
		Timezone: r.string("TIMEZONE", "America/Argentina/Buenos_Aires"),

		SheetBackend:    Backend(strings.ToLower(r.string("SHEET_BACKEND", string(BackendGSheets)))),
		SpreadsheetID:   r.string("SPREADSHEET_ID", ""),
		SheetName:       r.string("SHEET_NAME", ""),
		CredentialsFile: r.string("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		XLSXPath:        r.string("XLSX_PATH", "contacts.xlsx"),
		StoreTimeout:    r.duration("STORE_TIMEOUT", 30*time.Second),
		StrictReplace:   r.bool("STRICT_REPLACE", false),

		TranscribeModel:   r.string("TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeTimeout: r.duration("TRANSCRIBE_TIMEOUT", 60*time.Second),
	}
	c.LLMKey = r.string("LLM_API_KEY", c.OpenAIKey)
	if c.Debug {
		c.LogLevel = "debug"
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return c, c.validate()
}

func (c Config) validate() error {
	var errs []error
	if !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: unknown level %q", c.LogLevel))
	}
	if !slices.Contains([]Backend{BackendGSheets, BackendXLSX, BackendMemory}, c.SheetBackend) {
		errs = append(errs, fmt.Errorf("SHEET_BACKEND: unknown backend %q", c.SheetBackend))
	}
	if !slices.Contains(locale.Languages(), c.Language) {
		errs = append(errs, fmt.Errorf("LANGUAGE: unsupported language %q", c.Language))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, errors.New("MAX_ITERATIONS: must be at least 1"))
	}
	if c.LLMMaxTokens < 1 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS: must be at least 1, got %d", c.LLMMaxTokens))
	}
	if c.HistoryTurns < 0 {
		errs = append(errs, errors.New("HISTORY_TURNS: must not be negative"))
	}
	return errors.Join(errs...)
}

// Require reports every setting missing for the given parts.
func (c Config) Require(parts ...Part) error {
	var missing []string
	need := func(value, key string) {
		if value == "" {
			missing = append(missing, key)
		}
	}
	for _, part := range parts {
		switch part {
		case PartTelegram:
			need(c.TelegramToken, "TELEGRAM_API")
		case PartLLM:
			need(c.LLMKey, "LLM_API_KEY or OPENAI_API_KEY")
		case PartTranscribe:
			need(c.OpenAIKey, "OPENAI_API_KEY")
		case PartSheet:
			switch c.SheetBackend {
			case BackendGSheets:
				need(c.SpreadsheetID, "SPREADSHEET_ID")
				need(c.CredentialsFile, "GOOGLE_CREDENTIALS_FILE")
			case BackendXLSX:
				need(c.XLSXPath, "XLSX_PATH")
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(slices.Compact(missing), ", "))
	}
	return nil
}

// reader ------------------------------------------------------------------------------------------

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) string(key, fallback string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (r *reader) bool(key string, fallback bool) bool {
	v := r.string(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (r *reader) int(key string, fallback int) int {
	v := r.string(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (r *reader) float(key string, fallback float64) float64 {
	v := r.string(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

// duration accepts Go durations ("90s") and plain seconds ("90").
func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v := r.string(key, "")
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
