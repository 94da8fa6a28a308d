package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

// search_by_* -------------------------------------------------------------------------------------

var _ llm.Tool = (*searchTool)(nil)

// searchTool runs a fuzzy search over one column.
type searchTool struct {
	*env
	name  string
	field contact.Field
	param string
}

func (t *searchTool) Spec() (string, string, json.RawMessage) {
	return t.name, t.description(t.name), json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			%q: {
				"type": "string",
				"description": "Text to look for. Case and accents are ignored and partial matches count."
			}
		},
		"required": [%q]
	}`, t.param, t.param))
}

func (t *searchTool) Call(ctx context.Context, args string) (string, error) {
	parsed, err := parseArguments(args, []string{t.param}, 1)
	if err != nil {
		return t.formatError(t.name, []string{t.param})
	}
	needle := parsed.get(t.param)
	if contact.Normalize(needle) == "" {
		if t.field == contact.FieldName {
			return t.text(t.name, "invalid", t.catalog.Text("tool.error.name_required"))
		}
		return t.formatError(t.name, []string{t.param})
	}
	header := t.store.Schema().Header(t.field)
	var matches []contact.Record
	if t.field == contact.FieldName {
		matches = t.store.SearchByName(ctx, needle)
	} else {
		matches = t.store.SearchByField(ctx, header, needle)
	}
	t.logger.Debug("%s for %q found %d records", t.name, needle, len(matches))
	if len(matches) == 0 {
		return t.text(t.name, "empty", t.catalog.Sprintf("tool."+t.name+".none", needle))
	}
	out, err := t.records(matches)
	if err != nil {
		return "", err
	}
	return t.text(t.name, "ok", out)
}

// get_all_contacts --------------------------------------------------------------------------------

var _ llm.Tool = (*listTool)(nil)

type listTool struct {
	*env
}

func (t *listTool) Spec() (string, string, json.RawMessage) {
	return "get_all_contacts", t.description("get_all_contacts"), json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *listTool) Call(ctx context.Context, _ string) (string, error) {
	records := t.store.Records(ctx)
	t.logger.Debug("get_all_contacts found %d records", len(records))
	if len(records) == 0 {
		return t.text("get_all_contacts", "empty", t.catalog.Text("tool.get_all_contacts.none"))
	}
	out, err := t.records(records)
	if err != nil {
		return "", err
	}
	return t.text("get_all_contacts", "ok", out)
}
