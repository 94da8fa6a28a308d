package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetLevel("info")
	l.Debug("hidden %d", 1)
	l.Info("stored %s", "row")
	l.Error("failed: %v", "quota")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first logLineData
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first.Level)
	assert.Equal(t, "stored row", first.Message)
	assert.NotEmpty(t, first.Ts)

	var second logLineData
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second.Level)
	assert.Equal(t, "failed: quota", second.Message)
}

func TestDisabledLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetEnabled(false)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestConsoleLogger(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := NewConsole(&buf)
	l.SetLevel("debug")
	l.Warn("sheet header %q missing", "Rol")
	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), `sheet header "Rol" missing`)
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("warn"))
	assert.False(t, ValidLevel("trace"))
}
