package expr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Path evaluates GJSON path expressions against the JSON form of the job
// order, for example "message", "files.0.path" or "tags.#". A path that
// matches nothing evaluates to null. The library is not used.
type Path struct{}

// Evaluate implements Evaluator.
func (Path) Evaluate(ctx context.Context, source string, job any, _ string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("empty path")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job order: %w", err)
	}

	r := gjson.GetBytes(data, source)
	if !r.Exists() {
		return nil, nil
	}
	return fromGJSON(r), nil
}

func fromGJSON(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return r.Str
	case gjson.Number:
		if strings.ContainsAny(r.Raw, ".eE") {
			return r.Num
		}
		return r.Int()
	case gjson.JSON:
		if r.IsArray() {
			out := []any{}
			for _, item := range r.Array() {
				out = append(out, fromGJSON(item))
			}
			return out
		}
		out := map[string]any{}
		r.ForEach(func(k, v gjson.Result) bool {
			out[k.String()] = fromGJSON(v)
			return true
		})
		return out
	}
	return nil
}
