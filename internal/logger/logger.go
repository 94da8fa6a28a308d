package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Logger interface {
	SetEnabled(enabled bool)
	SetLevel(level string)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var levels = []string{"debug", "info", "warn", "error"}

// ValidLevel reports whether level is one of debug, info, warn or error.
func ValidLevel(level string) bool {
	return slices.Contains(levels, level)
}

//--------------------------------------------------------------------------------------------------

var _ Logger = (*noOpLogger)(nil)

type noOpLogger struct{}

func NoOp() Logger {
	return &noOpLogger{}
}

func (n *noOpLogger) SetEnabled(_ bool)        {}
func (n *noOpLogger) SetLevel(_ string)        {}
func (n *noOpLogger) Debug(_ string, _ ...any) {}
func (n *noOpLogger) Info(_ string, _ ...any)  {}
func (n *noOpLogger) Warn(_ string, _ ...any)  {}
func (n *noOpLogger) Error(_ string, _ ...any) {}

//--------------------------------------------------------------------------------------------------

type format uint8

const (
	formatJSON format = iota
	formatConsole
)

var _ Logger = (*logger)(nil)

type logger struct {
	mux     sync.RWMutex
	enabled bool
	level   string
	format  format
	out     io.Writer
	now     func() time.Time
}

// New returns a logger writing one JSON object per line to out.
func New(out io.Writer) Logger {
	return &logger{
		enabled: true,
		level:   "info",
		format:  formatJSON,
		out:     out,
		now:     time.Now,
	}
}

// NewConsole returns a logger writing coloured, human-readable lines to out.
func NewConsole(out io.Writer) Logger {
	return &logger{
		enabled: true,
		level:   "info",
		format:  formatConsole,
		out:     out,
		now:     time.Now,
	}
}

func (l *logger) SetEnabled(enabled bool) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.enabled = enabled
}

func (l *logger) SetLevel(level string) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.level = level
}

func (l *logger) Debug(msg string, args ...any) {
	l.log("debug", msg, args...)
}

func (l *logger) Info(msg string, args ...any) {
	l.log("info", msg, args...)
}

func (l *logger) Warn(msg string, args ...any) {
	l.log("warn", msg, args...)
}

func (l *logger) Error(msg string, args ...any) {
	l.log("error", msg, args...)
}

type logLineData struct {
	Ts      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (l *logger) log(level string, msg string, args ...any) {
	l.mux.RLock()
	_enabled, _level := l.enabled, l.level
	l.mux.RUnlock()
	if !_enabled || l.out == nil {
		return
	}
	logLevelIdx, loggerLevelIdx := slices.Index(levels, level), slices.Index(levels, _level)
	if logLevelIdx < 0 || loggerLevelIdx < 0 {
		panic(fmt.Sprintf("invalid log level: %s", _level))
	}
	if logLevelIdx < loggerLevelIdx {
		return
	}
	line := logLineData{
		Ts:      l.now().Format(time.RFC3339),
		Level:   level,
		Message: fmt.Sprintf(msg, args...),
	}
	var b []byte
	switch l.format {
	case formatConsole:
		b = []byte(l.consoleLine(line))
	default:
		var err error
		b, err = json.Marshal(line)
		if err != nil {
			panic(fmt.Sprintf("error marshalling log line: %v", err))
		}
	}
	// concurrent handlers share one writer
	l.mux.Lock()
	defer l.mux.Unlock()
	if _, err := l.out.Write(append(b, '\n')); err != nil {
		return
	}
	if f, ok := l.out.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		_ = f.Sync()
	}
}

func (l *logger) consoleLine(line logLineData) string {
	var tag string
	switch line.Level {
	case "debug":
		tag = color.New(color.Faint).Sprint("DBG")
	case "info":
		tag = color.New(color.FgCyan).Sprint("INF")
	case "warn":
		tag = color.New(color.FgYellow).Sprint("WRN")
	case "error":
		tag = color.New(color.FgRed, color.Bold).Sprint("ERR")
	}
	ts := color.New(color.Faint).Sprint(line.Ts)
	return strings.Join([]string{ts, tag, line.Message}, " ")
}
