package tool

import (
	"fmt"

	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

// LoadDocument reads a tool document from a .json, .yaml or .yml file.
func LoadDocument(path string) (map[string]any, error) {
	return loadMapping(path, "tool document")
}

// LoadJobOrder reads a job order from a .json, .yaml or .yml file.
func LoadJobOrder(path string) (map[string]any, error) {
	return loadMapping(path, "job order")
}

// ParseDocument decodes a tool document from JSON bytes.
func ParseDocument(data []byte) (map[string]any, error) {
	v, err := value.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return asMapping(v, "tool document")
}

// ParseJobOrder decodes a job order from JSON bytes.
func ParseJobOrder(data []byte) (map[string]any, error) {
	v, err := value.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return asMapping(v, "job order")
}

func loadMapping(path, what string) (map[string]any, error) {
	v, err := value.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", what, err)
	}
	m, err := asMapping(v, what)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

func asMapping(v any, what string) (map[string]any, error) {
	m, isMap, keysOK := value.Map(v)
	if !isMap || !keysOK {
		return nil, toolerr.New("tool", "load", toolerr.ErrCodeParseError,
			fmt.Sprintf("%s must be a mapping with string keys, got %s", what, value.KindOf(v)))
	}
	return m, nil
}
