package tool

import (
	"context"
	"encoding/json"

	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

var _ llm.Tool = (*timeTool)(nil)

// timeTool reports the current civil date and time so that relative dates can be resolved
// before they are written down.
type timeTool struct {
	*env
}

func (t *timeTool) Spec() (string, string, json.RawMessage) {
	return "get_current_time", t.description("get_current_time"), json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *timeTool) Call(_ context.Context, _ string) (string, error) {
	now := t.now().In(t.location)
	msg := t.catalog.Sprintf("tool.time",
		t.catalog.Weekday(now.Weekday()),
		now.Day(),
		t.catalog.Month(now.Month()),
		now.Year(),
		now.Format("15:04"),
		t.location.String(),
		now.Format("2006-01-02"),
	)
	return t.text("get_current_time", "ok", msg)
}
