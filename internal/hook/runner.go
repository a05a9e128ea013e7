// Package hook implements the stdin/stdout JSON contract shared by the
// coordination hooks: one JSON request object in, one JSON response
// object out, with dispatch on the request's "operation" field.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Dispatcher handles one hook's operation set. Implementations dispatch
// through a closed switch over their operation constants so adding an
// operation is a compile-time-checked change.
type Dispatcher interface {
	// Name is the hook identifier echoed in every response.
	Name() string
	// DefaultOperation is used when the request omits "operation".
	DefaultOperation() string
	// Dispatch runs one operation and returns the response fields to
	// merge into the envelope. Errors become structured success:false
	// responses, never a process failure.
	Dispatch(operation string, data map[string]any) (map[string]any, error)
}

// Run executes one hook invocation: reads a JSON object from in, routes
// it through d, and writes the JSON response to out. Empty input is a
// no-op with no output. All failures are converted to parseable JSON
// responses; the returned error covers only I/O on out.
func Run(d Dispatcher, in io.Reader, out io.Writer) error {
	input, err := io.ReadAll(in)
	if err != nil {
		return writeJSON(out, map[string]any{
			"error": fmt.Sprintf("Failed to read input: %v", err),
			"hook":  d.Name(),
		})
	}
	if strings.TrimSpace(string(input)) == "" {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(input, &data); err != nil {
		return writeJSON(out, map[string]any{
			"error": "Invalid JSON input",
			"hook":  d.Name(),
		})
	}

	result := map[string]any{
		"hook":      d.Name(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	operation, _ := data["operation"].(string)
	if operation == "" {
		operation = d.DefaultOperation()
	}

	fields, err := d.Dispatch(operation, data)
	if err != nil {
		result["success"] = false
		result["error"] = err.Error()
	}
	for k, v := range fields {
		result[k] = v
	}

	return writeJSON(out, result)
}

func writeJSON(out io.Writer, v map[string]any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ErrUnknownOperation builds the canonical unknown-operation error.
func ErrUnknownOperation(operation string) error {
	return fmt.Errorf("Unknown operation: %s", operation)
}

// decode remarshals an untyped request field into a typed value.
func decode(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// toMap flattens a typed result into response fields.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func mapField(data map[string]any, key string) map[string]any {
	m, _ := data[key].(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func stringsField(data map[string]any, key string) []string {
	raw, _ := data[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
