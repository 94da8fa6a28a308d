package tool

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var errArgs = errors.New("malformed arguments")

// arguments are the decoded parameters of one tool call.
type arguments map[string]string

func (a arguments) get(name string) string {
	return a[name]
}

func (a arguments) has(name string) bool {
	_, ok := a[name]
	return ok
}

// parseArguments decodes raw into values for params. The structured form is a JSON object keyed
// by parameter name. The delimited form is a single string of "|" separated values mapped onto
// params in order; it arrives either as {"input": "..."}, as a JSON string or as raw text. The
// first required params must be present in either form.
func parseArguments(raw string, params []string, required int) (arguments, error) {
	raw = strings.TrimSpace(raw)
	args := arguments{}
	if raw == "" {
		if required > 0 {
			return nil, errArgs
		}
		return args, nil
	}
	if !gjson.Valid(raw) {
		return parseDelimited(raw, params, required)
	}
	parsed := gjson.Parse(raw)
	switch {
	case parsed.Type == gjson.String:
		return parseDelimited(parsed.String(), params, required)
	case !parsed.IsObject():
		return parseDelimited(raw, params, required)
	}
	if input := parsed.Get("input"); input.Exists() && !anyPresent(parsed, params) {
		return parseDelimited(input.String(), params, required)
	}
	for _, p := range params {
		v := parsed.Get(p)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		args[p] = strings.TrimSpace(v.String())
	}
	for _, p := range params[:min(required, len(params))] {
		if !args.has(p) {
			return nil, errArgs
		}
	}
	return args, nil
}

// flagParams consume the last delimited value only when it reads as a boolean.
var flagParams = map[string]bool{"append": true}

// parseDelimited maps parts onto params in order. Surplus parts are joined back into the last
// text param so a "|" inside free text is kept.
func parseDelimited(s string, params []string, required int) (arguments, error) {
	parts := strings.Split(s, "|")
	if strings.TrimSpace(s) == "" {
		parts = nil
	}
	if len(parts) < required {
		return nil, errArgs
	}
	args := arguments{}
	fields := params
	for len(fields) > required && flagParams[fields[len(fields)-1]] {
		flag := fields[len(fields)-1]
		fields = fields[:len(fields)-1]
		if last := len(parts) - 1; last >= required && isBool(parts[last]) {
			args[flag] = strings.TrimSpace(parts[last])
			parts = parts[:last]
		}
	}
	for i, p := range fields {
		if i >= len(parts) {
			break
		}
		if i == len(fields)-1 {
			args[p] = strings.TrimSpace(strings.Join(parts[i:], "|"))
			break
		}
		args[p] = strings.TrimSpace(parts[i])
	}
	return args, nil
}

func anyPresent(obj gjson.Result, params []string) bool {
	for _, p := range params {
		if obj.Get(p).Exists() {
			return true
		}
	}
	return false
}

func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "1", "0", "yes", "no", "si", "sí":
		return true
	}
	return false
}

func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback
	case "true", "1", "yes", "si", "sí":
		return true
	default:
		return false
	}
}
