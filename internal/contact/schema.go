package contact

import "fmt"

type Field string

const (
	FieldName            Field = "name"
	FieldPhone           Field = "phone"
	FieldEmail           Field = "email"
	FieldMessagingHandle Field = "messaging_handle"
	FieldCompany         Field = "company"
	FieldRole            Field = "role"
	FieldBio             Field = "bio"
	FieldLog             Field = "log"
)

// Fields lists the application schema in its canonical order.
var Fields = []Field{
	FieldName,
	FieldPhone,
	FieldEmail,
	FieldMessagingHandle,
	FieldCompany,
	FieldRole,
	FieldBio,
	FieldLog,
}

// Schema maps the application fields to the header labels used by the backing store. It
// describes what the application expects; the store's live header row decides write order.
type Schema map[Field]string

// DefaultSchema matches the header row of the production contacts sheet.
var DefaultSchema = Schema{
	FieldName:            "Nombre",
	FieldPhone:           "Teléfono",
	FieldEmail:           "Email",
	FieldMessagingHandle: "Telegram",
	FieldCompany:         "Empresa",
	FieldRole:            "Rol",
	FieldBio:             "bio",
	FieldLog:             "bitácora",
}

func (s Schema) Header(f Field) string {
	if h, ok := s[f]; ok {
		return h
	}
	return string(f)
}

// Headers returns the expected header row in canonical field order.
func (s Schema) Headers() []string {
	headers := make([]string, len(Fields))
	for i, f := range Fields {
		headers[i] = s.Header(f)
	}
	return headers
}

// Validate checks every field has a distinct, non-empty header.
func (s Schema) Validate() error {
	seen := map[string]Field{}
	for _, f := range Fields {
		h, ok := s[f]
		if !ok || h == "" {
			return fmt.Errorf("schema has no header for field %q", f)
		}
		if other, dup := seen[h]; dup {
			return fmt.Errorf("schema maps both %q and %q to header %q", other, f, h)
		}
		seen[h] = f
	}
	return nil
}

// column check ------------------------------------------------------------------------------------

type ColumnStatus string

const (
	ColumnOK       ColumnStatus = "ok"
	ColumnMismatch ColumnStatus = "mismatch"
	ColumnMissing  ColumnStatus = "missing"
	ColumnExtra    ColumnStatus = "extra"
)

type ColumnCheck struct {
	Position int
	Expected string
	Actual   string
	Status   ColumnStatus
}

// Diff compares an expected header row against the one found in the store, position by
// position.
func Diff(expected, actual []string) ([]ColumnCheck, bool) {
	n := max(len(expected), len(actual))
	checks := make([]ColumnCheck, 0, n)
	allOK := true
	for i := range n {
		c := ColumnCheck{Position: i + 1}
		switch {
		case i >= len(actual):
			c.Expected, c.Status = expected[i], ColumnMissing
		case i >= len(expected):
			c.Actual, c.Status = actual[i], ColumnExtra
		case expected[i] == actual[i]:
			c.Expected, c.Actual, c.Status = expected[i], actual[i], ColumnOK
		default:
			c.Expected, c.Actual, c.Status = expected[i], actual[i], ColumnMismatch
		}
		if c.Status == ColumnMissing || c.Status == ColumnMismatch {
			allOK = false
		}
		checks = append(checks, c)
	}
	return checks, allOK
}
