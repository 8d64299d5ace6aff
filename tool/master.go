package tool

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/zero-day-ai/toolbind/schema"
	"github.com/zero-day-ai/toolbind/value"
)

// ContextMarker is the only @context value a tool document may declare.
const ContextMarker = "https://raw.githubusercontent.com/common-workflow-language/common-workflow-language/draft-2-pa/schemas/draft-2/context.json"

// Names of the master schemas.
const (
	SchemaCommandLineTool = "CommandLineTool"
	SchemaPort            = "Port"
	SchemaBinding         = "Binding"
	SchemaExpression      = "Expression"
	SchemaObject          = "SchemaObject"
)

// Names under which each descriptor registers its synthesized port records.
const (
	InputRecordName  = "input_record_schema"
	OutputRecordName = "output_record_schema"
)

//go:embed master.yaml
var masterYAML []byte

var (
	masterOnce  sync.Once
	masterNames *schema.Names
	masterErr   error
)

// Master returns a copy of the registry holding the master schemas.
func Master() (*schema.Names, error) {
	masterOnce.Do(func() {
		masterNames, masterErr = loadMaster(masterYAML)
	})
	if masterErr != nil {
		return nil, masterErr
	}
	return masterNames.Clone(), nil
}

func loadMaster(data []byte) (*schema.Names, error) {
	raw, err := value.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("decode master schemas: %w", err)
	}
	defs, ok := value.List(raw)
	if !ok {
		return nil, fmt.Errorf("master schemas must be a list, got %s", value.KindOf(raw))
	}

	names := schema.NewNames()
	for i, def := range defs {
		if _, err := schema.Parse(names, def); err != nil {
			return nil, fmt.Errorf("master schema %d: %w", i, err)
		}
	}

	root, err := names.Get(SchemaCommandLineTool)
	if err != nil {
		return nil, err
	}
	if err := names.CheckRefs(root); err != nil {
		return nil, fmt.Errorf("master schemas: %w", err)
	}
	return names, nil
}
