package tool

import (
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/toolbind/binding"
	"github.com/zero-day-ai/toolbind/expr"
	"github.com/zero-day-ai/toolbind/schema"
	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

const instrumentationName = "github.com/zero-day-ai/toolbind/tool"

// Descriptor is a validated tool document ready to turn job orders into
// command lines. It is immutable after New and safe for concurrent use.
type Descriptor struct {
	id          string
	description string
	baseCommand []any

	names     *schema.Names
	validator *schema.Validator
	builder   *binding.Builder
	inputs    *schema.Node
	outputs   *schema.Node

	// arguments are keyed [position, index] at construction; their values
	// are resolved per build.
	arguments      []binding.Binding
	expressionDefs []expr.Operand
	engines        expr.Engines

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *buildMetrics
}

type buildMetrics struct {
	builds   metric.Int64Counter
	failures metric.Int64Counter
}

// New validates doc and prepares a descriptor.
//
// The document must declare @context equal to ContextMarker and conform to
// the CommandLineTool master schema. Its schemaDefs are registered next to
// the master schemas, and its inputs and outputs become the records
// InputRecordName and OutputRecordName, each port "#name" turning into a
// field "name". Every schema reference must resolve.
func New(doc map[string]any, opts ...Option) (*Descriptor, error) {
	cfg := &descriptorConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	if cfg.meter == nil {
		cfg.meter = otel.Meter(instrumentationName)
	}

	doc, _ = value.Normalize(doc).(map[string]any)
	if err := checkContext(doc); err != nil {
		return nil, err
	}

	names, err := Master()
	if err != nil {
		return nil, err
	}
	validator := schema.NewValidator(names)
	if err := validator.Validate(schema.Ref(SchemaCommandLineTool), doc); err != nil {
		return nil, toolerr.New("tool", "new", toolerr.ErrCodeSchemaMismatch,
			"document is not a valid "+SchemaCommandLineTool).WithCause(err)
	}

	if defs, ok := value.List(doc["schemaDefs"]); ok {
		for i, def := range defs {
			if _, err := schema.Parse(names, def); err != nil {
				return nil, fmt.Errorf("schemaDefs[%d]: %w", i, err)
			}
		}
	}

	inputs, err := portRecord(names, InputRecordName, doc["inputs"])
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	outputs, err := portRecord(names, OutputRecordName, doc["outputs"])
	if err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	for _, rec := range []*schema.Node{inputs, outputs} {
		if err := names.CheckRefs(rec); err != nil {
			return nil, err
		}
	}

	arguments, err := parseArguments(doc["arguments"])
	if err != nil {
		return nil, err
	}

	engines, err := expr.DefaultEngines()
	if err != nil {
		return nil, fmt.Errorf("create expression engines: %w", err)
	}
	for typ, ev := range cfg.evaluators {
		engines[typ] = ev
	}

	metrics, err := newBuildMetrics(cfg.meter)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		names:          names,
		validator:      validator,
		builder:        binding.NewBuilder(names),
		inputs:         inputs,
		outputs:        outputs,
		arguments:      arguments,
		expressionDefs: parseExpressionDefs(doc["expressionDefs"]),
		engines:        engines,
		logger:         cfg.logger,
		tracer:         cfg.tracer,
		metrics:        metrics,
	}
	d.id, _ = doc["id"].(string)
	d.description, _ = doc["description"].(string)
	switch bc := doc["baseCommand"].(type) {
	case string:
		d.baseCommand = []any{bc}
	case []any:
		d.baseCommand = bc
	}

	d.logger.Debug("tool descriptor created",
		"id", d.id,
		"inputs", len(inputs.Fields),
		"outputs", len(outputs.Fields),
		"arguments", len(arguments),
		"schemas", len(names.Names()),
	)
	return d, nil
}

func checkContext(doc map[string]any) error {
	raw, ok := doc["@context"]
	if !ok {
		return toolerr.New("tool", "new", toolerr.ErrCodeMissingContextMarker,
			"document has no @context field")
	}
	if ctx, _ := raw.(string); ctx != ContextMarker {
		return toolerr.New("tool", "new", toolerr.ErrCodeMissingContextMarker,
			fmt.Sprintf("unsupported @context %s", value.Describe(raw))).
			WithDetails(map[string]any{"expected": ContextMarker})
	}
	return nil
}

// portRecord turns port declarations into a record registered as name.
func portRecord(names *schema.Names, name string, raw any) (*schema.Node, error) {
	ports, _ := value.List(raw)
	rec := schema.Record(name)
	seen := map[string]bool{}

	for i, p := range ports {
		port, _, _ := value.Map(p)
		id, _ := port["port"].(string)
		fieldName := strings.TrimPrefix(id, "#")
		if fieldName == "" {
			return nil, toolerr.New("tool", "new", toolerr.ErrCodeInvalidSchema,
				fmt.Sprintf("port %d has an empty identifier", i))
		}
		if seen[fieldName] {
			return nil, toolerr.New("tool", "new", toolerr.ErrCodeInvalidSchema,
				fmt.Sprintf("port %q is declared twice", id))
		}
		seen[fieldName] = true

		f, err := schema.ParseField(names, map[string]any{
			"name":    fieldName,
			"type":    port["type"],
			"binding": port["binding"],
			"doc":     port["doc"],
		})
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", id, err)
		}
		rec.Fields = append(rec.Fields, f)
	}

	if err := names.Register(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseArguments keys each argument [position, index]. A bare string is a
// literal at position 0; an argument with a prefix and no valueFrom emits
// only its prefix.
func parseArguments(raw any) ([]binding.Binding, error) {
	args, _ := value.List(raw)
	out := make([]binding.Binding, 0, len(args))

	for i, a := range args {
		if s, ok := a.(string); ok {
			out = append(out, binding.Binding{
				Position:  binding.Key{binding.Int(0), binding.Int(int64(i))},
				ValueFrom: expr.Literal(s),
			})
			continue
		}

		spec, err := schema.ParseBinding(a)
		if err != nil {
			return nil, fmt.Errorf("arguments[%d]: %w", i, err)
		}
		operand := expr.Literal(nil)
		switch {
		case spec.ValueFrom != nil:
			operand = *spec.ValueFrom
		case spec.Prefix != "":
			operand = expr.Literal(true)
		}
		out = append(out, binding.Binding{
			Position:      binding.Key{binding.Int(spec.PositionOrDefault()), binding.Int(int64(i))},
			Prefix:        spec.Prefix,
			ItemSeparator: spec.ItemSeparator,
			ValueFrom:     operand,
		})
	}
	return out, nil
}

func parseExpressionDefs(raw any) []expr.Operand {
	defs, _ := value.List(raw)
	out := make([]expr.Operand, 0, len(defs))
	for _, d := range defs {
		out = append(out, expr.ParseOperand(d))
	}
	return out
}

func newBuildMetrics(meter metric.Meter) (*buildMetrics, error) {
	builds, err := meter.Int64Counter(
		"toolbind.builds",
		metric.WithDescription("Number of job orders built into command lines"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create builds counter: %w", err)
	}
	failures, err := meter.Int64Counter(
		"toolbind.build.failures",
		metric.WithDescription("Number of job orders that failed to build"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create build failures counter: %w", err)
	}
	return &buildMetrics{builds: builds, failures: failures}, nil
}

// ID returns the document's id, or "" when it has none.
func (d *Descriptor) ID() string { return d.id }

// Description returns the document's description.
func (d *Descriptor) Description() string { return d.description }

// BaseCommand returns the base command words.
func (d *Descriptor) BaseCommand() []string {
	out := make([]string, 0, len(d.baseCommand))
	for _, w := range d.baseCommand {
		s, _ := value.String(w)
		out = append(out, s)
	}
	return out
}

// InputSchema returns the synthesized input record.
func (d *Descriptor) InputSchema() *schema.Node { return d.inputs }

// OutputSchema returns the synthesized output record.
func (d *Descriptor) OutputSchema() *schema.Node { return d.outputs }

// Names returns the descriptor's schema registry: the master schemas, the
// document's schemaDefs and the two port records.
func (d *Descriptor) Names() *schema.Names { return d.names }
