package llm

import (
	"context"
	"encoding/json"
)

// Tool is a function the model may call. Spec returns the name, the description and the JSON
// schema of the arguments. Call receives the raw arguments string exactly as the model wrote
// it.
type Tool interface {
	Spec() (string, string, json.RawMessage)
	Call(ctx context.Context, args string) (string, error)
}

// FindTool returns the tool registered under name.
func FindTool(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if n, _, _ := t.Spec(); n == name {
			return t, true
		}
	}
	return nil, false
}

func ToolNames(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i], _, _ = t.Spec()
	}
	return names
}
