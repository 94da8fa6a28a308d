package llm

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// StreamError is a failure reported by the provider, either as a non-ok HTTP status or as an
// error chunk in the middle of a stream. Code holds numeric codes and Type string ones such as
// "rate_limit_exceeded".
type StreamError struct {
	Code     int
	Type     string
	Message  string
	Metadata map[string]any
}

func (e StreamError) Error() string {
	code := fmt.Sprintf("%d", e.Code)
	if e.Type != "" {
		code = e.Type
	}
	if len(e.Metadata) == 0 {
		return fmt.Sprintf("%s (%s)", e.Message, code)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		meta = []byte(fmt.Sprintf("%v", e.Metadata))
	}
	return fmt.Sprintf("%s (%s): %s", e.Message, code, meta)
}

func streamErrorFrom(obj gjson.Result) *StreamError {
	e := &StreamError{Message: obj.Get("message").String()}
	if obj.Type == gjson.String {
		e.Message = obj.String()
	}
	switch code := obj.Get("code"); code.Type {
	case gjson.Number:
		e.Code = int(code.Int())
	case gjson.String:
		e.Type = code.String()
	}
	if e.Type == "" {
		e.Type = obj.Get("type").String()
	}
	if meta, ok := obj.Get("metadata").Value().(map[string]any); ok {
		e.Metadata = meta
	}
	return e
}
