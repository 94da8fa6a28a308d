package sheet

import "fmt"

type FailureKind uint8

const (
	FailureNone FailureKind = iota
	// FailureInvalid means the request itself was unusable, e.g. an empty name.
	FailureInvalid
	// FailureUnknownField means the header is not in the store's current header row.
	FailureUnknownField
	FailureNotFound
	// FailureAmbiguous is only produced in strict-replace mode.
	FailureAmbiguous
	FailureExists
	FailureBackend
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalid:
		return "invalid"
	case FailureUnknownField:
		return "unknown_field"
	case FailureNotFound:
		return "not_found"
	case FailureAmbiguous:
		return "ambiguous"
	case FailureExists:
		return "exists"
	case FailureBackend:
		return "backend"
	default:
		return fmt.Sprintf("failure(%d)", uint8(k))
	}
}

// Result is the outcome of a write. Failures are values, not errors: only Err carries the
// underlying backend error, for logging.
type Result struct {
	Kind FailureKind
	// Row is the 1-based sheet row that was written, when known.
	Row int
	Err error
}

func (r Result) OK() bool {
	return r.Kind == FailureNone
}

func ok(row int) Result {
	return Result{Kind: FailureNone, Row: row}
}

func fail(kind FailureKind, err error) Result {
	return Result{Kind: kind, Err: err}
}
