package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

type updateMode uint8

const (
	replaceValue updateMode = iota
	// appendByDefault appends unless the caller passes append=false.
	appendByDefault
	appendAlways
)

var _ llm.Tool = (*updateTool)(nil)

// updateTool writes one field of an existing contact.
type updateTool struct {
	*env
	name  string
	field contact.Field
	param string
	mode  updateMode
}

func (t *updateTool) params() []string {
	if t.mode == appendByDefault {
		return []string{"name", t.param, "append"}
	}
	return []string{"name", t.param}
}

func (t *updateTool) Spec() (string, string, json.RawMessage) {
	header := t.store.Schema().Header(t.field)
	appendProp := ""
	if t.mode == appendByDefault {
		appendProp = `,
			"append": {
				"type": "boolean",
				"description": "Append to the existing content (true, the default) or replace it (false)."
			}`
	}
	return t.name, t.description(t.name), json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"name": {
				"type": "string",
				"description": "Name of the contact. Case and accents are ignored and partial names match."
			},
			%q: {
				"type": "string",
				"description": %q
			}%s
		},
		"required": ["name", %q]
	}`, t.param, t.valueDescription(header), appendProp, t.param))
}

func (t *updateTool) valueDescription(header string) string {
	if t.mode == replaceValue {
		return "New value for the " + header + " column. An empty string clears it."
	}
	return "Text to store in the " + header + " column."
}

func (t *updateTool) Call(ctx context.Context, args string) (string, error) {
	params := t.params()
	parsed, err := parseArguments(args, params, 2)
	if err != nil {
		return t.formatError(t.name, params)
	}
	name, value := parsed.get("name"), parsed.get(t.param)
	header := t.store.Schema().Header(t.field)
	switch {
	case contact.Normalize(name) == "":
		return t.text(t.name, "invalid", t.catalog.Text("tool.error.name_required"))
	case strings.TrimSpace(value) == "" && t.mode != replaceValue:
		return t.text(t.name, "invalid", t.catalog.Sprintf("tool.error.value_required", header))
	case contact.IsPlaceholder(value, t.catalog.Placeholder()):
		t.logger.Warn("%s refused placeholder value for %q", t.name, name)
		return t.text(t.name, "invalid", t.catalog.Sprintf("tool.error.placeholder", value))
	}
	appendValue := false
	switch t.mode {
	case appendByDefault:
		appendValue = parseBool(parsed.get("append"), true)
	case appendAlways:
		appendValue = true
	}
	res := t.store.UpdateField(ctx, name, header, value, appendValue)
	if !res.OK() {
		return t.failure(t.name, name, header, res)
	}
	return t.text(t.name, "ok", t.catalog.Sprintf("tool."+t.name+".ok", name))
}
