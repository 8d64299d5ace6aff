package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/toolbind/expr"
	"github.com/zero-day-ai/toolbind/toolerr"
)

func TestParse_Types(t *testing.T) {
	tests := []struct {
		name string
		def  any
		want string
	}{
		{"primitive", "long", "long"},
		{"file", "File", "File"},
		{"reference", "Point", "Point"},
		{"union", []any{"null", "string"}, "[null, string]"},
		{"array", map[string]any{"type": "array", "items": "int"}, "array<int>"},
		{"map", map[string]any{"type": "map", "values": "double"}, "map<double>"},
		{"primitive mapping", map[string]any{"type": "string"}, "string"},
		{"nested definition", map[string]any{"type": []any{"null", "int"}}, "[null, int]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(NewNames(), tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParse_NamedTypesAreRegistered(t *testing.T) {
	names := NewNames()
	_, err := Parse(names, []any{
		map[string]any{"type": "enum", "name": "Color", "symbols": []any{"red", "green"}},
		map[string]any{"type": "fixed", "name": "MD5", "size": int64(16)},
		map[string]any{"type": "record", "name": "Pixel", "fields": []any{
			map[string]any{"name": "color", "type": "Color"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Color", "MD5", "Pixel"}, names.Names())

	md5, err := names.Get("MD5")
	require.NoError(t, err)
	assert.Equal(t, 16, md5.Size)

	pixel, err := names.Get("Pixel")
	require.NoError(t, err)
	require.Len(t, pixel.Fields, 1)
	assert.Equal(t, KindRef, pixel.Fields[0].Type.Kind)
	assert.NoError(t, names.CheckRefs(pixel))
}

func TestParse_Bindings(t *testing.T) {
	names := NewNames()
	n, err := Parse(names, map[string]any{
		"type": "record",
		"name": "Inputs",
		"fields": []any{
			map[string]any{
				"name":    "threads",
				"type":    "int",
				"doc":     "worker threads",
				"binding": map[string]any{"position": int64(2), "prefix": "-t"},
			},
			map[string]any{
				"name": "files",
				"type": map[string]any{
					"type":    "array",
					"items":   "File",
					"binding": map[string]any{"itemSeparator": ","},
				},
			},
			map[string]any{
				"name": "greeting",
				"type": "string",
				"binding": map[string]any{
					"valueFrom": map[string]any{"@type": "CelExpression", "value": "job.name"},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, n.Fields, 3)

	threads := n.Fields[0]
	require.NotNil(t, threads.Binding)
	assert.Equal(t, int64(2), threads.Binding.PositionOrDefault())
	assert.Equal(t, "-t", threads.Binding.Prefix)
	assert.Equal(t, "worker threads", threads.Doc)

	files := n.Fields[1]
	assert.Nil(t, files.Binding)
	require.NotNil(t, files.Type.Binding)
	assert.Equal(t, ",", files.Type.Binding.ItemSeparator)
	assert.Equal(t, int64(0), files.Type.Binding.PositionOrDefault())

	greeting := n.Fields[2]
	require.NotNil(t, greeting.Binding.ValueFrom)
	assert.Equal(t, &expr.Expression{Type: expr.TypeCEL, Source: "job.name"}, greeting.Binding.ValueFrom.Expression)
}

func TestParse_BindingOnNamedTypeStaysLocal(t *testing.T) {
	names := NewNames()
	n, err := Parse(names, map[string]any{
		"type":    map[string]any{"type": "enum", "name": "Mode", "symbols": []any{"fast", "slow"}},
		"binding": map[string]any{"prefix": "--mode"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindRef, n.Kind)
	assert.Equal(t, "--mode", n.Binding.Prefix)

	registered, err := names.Get("Mode")
	require.NoError(t, err)
	assert.Nil(t, registered.Binding)
}

func TestParse_YAMLDefinition(t *testing.T) {
	src := `
type: record
name: Sample
fields:
  - name: id
    type: string
  - name: scores
    type: {type: map, values: double}
  - name: parent
    type: ["null", Sample]
`
	var def any
	require.NoError(t, yaml.Unmarshal([]byte(src), &def))

	names := NewNames()
	n, err := Parse(names, def)
	require.NoError(t, err)

	v := NewValidator(names)
	assert.NoError(t, v.Validate(n, map[string]any{
		"id":     "a",
		"scores": map[string]any{"x": 1.5, "y": int64(2)},
		"parent": map[string]any{"id": "b", "scores": map[string]any{}},
	}))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		def    any
		errMsg string
	}{
		{"nil", nil, "empty"},
		{"number", int64(3), "unsupported schema definition"},
		{"bare record", "record", "requires a mapping"},
		{"empty union", []any{}, "no alternatives"},
		{"nested union", []any{"null", []any{"string"}}, "itself a union"},
		{"mapping without type", map[string]any{"name": "x"}, "no type"},
		{"array without items", map[string]any{"type": "array"}, "no items"},
		{"map without values", map[string]any{"type": "map"}, "no values"},
		{"record without name", map[string]any{"type": "record", "fields": []any{}}, "no name"},
		{"record named like primitive", map[string]any{"type": "record", "name": "string", "fields": []any{}}, "cannot be named"},
		{"record without fields", map[string]any{"type": "record", "name": "R"}, "no fields"},
		{"duplicate field", map[string]any{"type": "record", "name": "R", "fields": []any{
			map[string]any{"name": "a", "type": "int"},
			map[string]any{"name": "a", "type": "int"},
		}}, "twice"},
		{"field without type", map[string]any{"type": "record", "name": "R", "fields": []any{
			map[string]any{"name": "a"},
		}}, `field "a" has no type`},
		{"enum without symbols", map[string]any{"type": "enum", "name": "E"}, "no symbols"},
		{"enum symbol not string", map[string]any{"type": "enum", "name": "E", "symbols": []any{int64(1)}}, "not a string"},
		{"fixed negative size", map[string]any{"type": "fixed", "name": "F", "size": int64(-1)}, "non-negative"},
		{"binding not a mapping", map[string]any{"type": "int", "binding": "x"}, "binding must be a mapping"},
		{"binding float position", map[string]any{"type": "int", "binding": map[string]any{"position": 1.5}}, "position must be an integer"},
		{"binding prefix not string", map[string]any{"type": "int", "binding": map[string]any{"prefix": int64(1)}}, "prefix must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(NewNames(), tt.def)
			require.Error(t, err)
			assert.ErrorIs(t, err, toolerr.ErrInvalidSchema)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParse_DuplicateName(t *testing.T) {
	names := NewNames()
	def := map[string]any{"type": "enum", "name": "E", "symbols": []any{"a"}}

	_, err := Parse(names, def)
	require.NoError(t, err)

	_, err = Parse(names, def)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrInvalidSchema)
	assert.Contains(t, err.Error(), "already defined")
}

func TestParseField(t *testing.T) {
	f, err := ParseField(NewNames(), map[string]any{"name": "message", "type": "string", "binding": map[string]any{"position": int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, "message", f.Name)
	assert.Equal(t, KindString, f.Type.Kind)
	assert.Equal(t, int64(1), f.Binding.PositionOrDefault())

	_, err = ParseField(NewNames(), "message")
	assert.ErrorIs(t, err, toolerr.ErrInvalidSchema)
}
