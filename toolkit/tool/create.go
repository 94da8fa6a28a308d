package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/sheet"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

// positional order of the delimited form: name|phone|email|telegram|company|role|bio
var addContactParams = []struct {
	param string
	field contact.Field
}{
	{"name", contact.FieldName},
	{"phone", contact.FieldPhone},
	{"email", contact.FieldEmail},
	{"telegram", contact.FieldMessagingHandle},
	{"company", contact.FieldCompany},
	{"role", contact.FieldRole},
	{"bio", contact.FieldBio},
}

var _ llm.Tool = (*addContactTool)(nil)

type addContactTool struct {
	*env
}

func (t *addContactTool) Spec() (string, string, json.RawMessage) {
	return "add_new_contact", t.description("add_new_contact"), json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Full name of the new contact."},
			"phone": {"type": "string"},
			"email": {"type": "string"},
			"telegram": {"type": "string", "description": "Telegram username, e.g. @handle."},
			"company": {"type": "string"},
			"role": {"type": "string"},
			"bio": {"type": "string", "description": "Biography or personal notes."}
		},
		"required": ["name"]
	}`)
}

func (t *addContactTool) Call(ctx context.Context, args string) (string, error) {
	params := make([]string, len(addContactParams))
	for i, p := range addContactParams {
		params[i] = p.param
	}
	parsed, err := parseArguments(args, params, 1)
	if err != nil {
		return t.formatError("add_new_contact", params)
	}
	name := parsed.get("name")
	if contact.Normalize(name) == "" {
		return t.text("add_new_contact", "invalid", t.catalog.Text("tool.error.name_required"))
	}
	schema := t.store.Schema()
	values := map[string]string{}
	for _, p := range addContactParams {
		v := parsed.get(p.param)
		if contact.IsPlaceholder(v, t.catalog.Placeholder()) {
			v = ""
		}
		values[schema.Header(p.field)] = v
	}
	res, existing := t.store.AddRecordIfAbsent(ctx, values)
	switch {
	case res.Kind == sheet.FailureExists:
		names := make([]string, len(existing))
		for i, r := range existing {
			names[i] = r.Name(schema)
		}
		return t.text("add_new_contact", res.Kind.String(),
			t.catalog.Sprintf("tool.add_new_contact.exists", name, strings.Join(names, ", ")))
	case !res.OK():
		return t.failure("add_new_contact", name, schema.Header(contact.FieldName), res)
	}
	return t.text("add_new_contact", "ok", t.catalog.Sprintf("tool.add_new_contact.ok", name))
}
