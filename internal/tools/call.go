package tools

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ToolCall is a named tool invocation emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// DecodeArguments parses a provider argument payload into a mapping. The
// payload is either a JSON object or a JSON string that encodes one.
func DecodeArguments(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, errors.Wrap(err, "decoding argument string")
		}
		return DecodeArguments([]byte(encoded))
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errors.Wrap(err, "decoding arguments")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func requireString(input map[string]any, key string) (string, error) {
	val, ok := input[key].(string)
	if !ok || val == "" {
		return "", newError(KindInvalidArguments, "missing "+key+" argument")
	}
	return val, nil
}

// optionalString returns def when key is absent or empty.
func optionalString(input map[string]any, key, def string) (string, error) {
	raw, present := input[key]
	if !present || raw == nil {
		return def, nil
	}
	val, ok := raw.(string)
	if !ok {
		return "", newError(KindInvalidArguments, key+" must be a string")
	}
	if val == "" {
		return def, nil
	}
	return val, nil
}
