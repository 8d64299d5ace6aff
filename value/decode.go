package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/toolbind/toolerr"
)

// DecodeJSON decodes a JSON document into a canonical value. Integral
// literals become int64 and literals with a fraction or exponent become
// float64, so 42 and 42.0 stay distinguishable.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, parseError("decode_json", "failed to parse JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, parseError("decode_json", "unexpected data after JSON document", err)
	}
	return Normalize(normalizeNumbers(v)), nil
}

// normalizeNumbers turns json.Number literals into int64 when the literal
// has no fraction or exponent.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if isIntegerLiteral(x.String()) {
			if n, err := x.Int64(); err == nil {
				return n
			}
			if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
				return u
			}
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []any:
		for i, item := range x {
			x[i] = normalizeNumbers(item)
		}
		return x
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeNumbers(item)
		}
		return x
	}
	return v
}

func isIntegerLiteral(s string) bool {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			return false
		}
	}
	return true
}

// EncodeJSON encodes a canonical value so that DecodeJSON reads it back with
// the same kinds. Whole floats keep a ".0" fraction; encoding/json alone
// would write float64(2) as 2, which decodes as an integer.
func EncodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(markFloats(v))
	if err != nil {
		return nil, toolerr.New("value", "encode_json", toolerr.ErrCodeParseError, "failed to encode JSON").WithCause(err)
	}
	return data, nil
}

// markFloats copies v, replacing whole finite floats with json.Number
// literals that carry a fraction.
func markFloats(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) || x != math.Trunc(x) {
			return x
		}
		return json.Number(strconv.FormatFloat(x, 'f', -1, 64) + ".0")
	case float32:
		return markFloats(float64(x))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = markFloats(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = markFloats(item)
		}
		return out
	}
	return v
}

// DecodeYAML decodes a YAML document into a canonical value.
func DecodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, parseError("decode_yaml", "failed to parse YAML", err)
	}
	return Normalize(v), nil
}

// ReadFile reads a JSON or YAML document, choosing the decoder by extension
// (.json, .yaml, .yml).
func ReadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, toolerr.New("value", "read_file", toolerr.ErrCodeParseError,
			fmt.Sprintf("failed to read %s", path)).
			WithCause(err).
			WithClass(toolerr.ErrorClassInfrastructure)
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
		return DecodeJSON(data)
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return nil, toolerr.New("value", "read_file", toolerr.ErrCodeParseError,
			fmt.Sprintf("unsupported document format: %s (supported: .json, .yaml, .yml)", ext))
	}
}

func parseError(op, msg string, cause error) error {
	return toolerr.New("value", op, toolerr.ErrCodeParseError, msg).WithCause(cause)
}
