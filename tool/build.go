package tool

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/toolbind/binding"
	"github.com/zero-day-ai/toolbind/expr"
	"github.com/zero-day-ai/toolbind/toolerr"
	"github.com/zero-day-ai/toolbind/value"
)

// Job is the command line built from one job order.
type Job struct {
	// ID identifies this build.
	ID uuid.UUID `json:"id"`

	// Bindings are sorted by position and resolved.
	Bindings []binding.Binding `json:"bindings"`

	// Files lists every File value in the job order, in build order.
	Files []any `json:"files"`

	// Fragments holds the arguments of each binding, parallel to Bindings.
	Fragments [][]string `json:"fragments"`
}

// Argv flattens the fragments into a process argument list.
func (j *Job) Argv() []string {
	var argv []string
	for _, f := range j.Fragments {
		argv = append(argv, f...)
	}
	return argv
}

// Validate checks a job order against the input record. A mismatch is
// reported as SCHEMA_MISMATCH wrapping the *schema.ValidationError.
func (d *Descriptor) Validate(jobOrder any) error {
	if err := d.validator.Validate(d.inputs, value.Normalize(jobOrder)); err != nil {
		return toolerr.New("tool", "validate", toolerr.ErrCodeSchemaMismatch,
			"job order rejected").WithCause(err)
	}
	return nil
}

// Build turns a job order into a sorted, resolved command line.
//
// The job order is validated first; nothing is built for an invalid one.
// The expression library is assembled from expressionDefs in declaration
// order, each definition seeing the library accumulated before it, and is
// discarded when Build returns. The base command is bound at the lowest
// possible position, explicit arguments at [position, index], and the job
// order through the input record. Every binding's value is resolved in build
// order before the stable sort.
func (d *Descriptor) Build(ctx context.Context, jobOrder any) (job *Job, err error) {
	id := uuid.New()

	ctx, span := d.tracer.Start(ctx, "tool.Build",
		trace.WithAttributes(
			attribute.String("job.id", id.String()),
			attribute.String("tool.id", d.id),
		),
	)
	defer func() {
		d.metrics.builds.Add(ctx, 1, metric.WithAttributes(attribute.String("tool.id", d.id)))
		if err != nil {
			d.metrics.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool.id", d.id),
				attribute.String("error.code", toolerr.CodeOf(err)),
			))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.logger.Debug("build failed", "job_id", id, "tool", d.id, "error", err)
		} else {
			span.SetAttributes(attribute.Int("binding.count", len(job.Bindings)))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	jobOrder = value.Normalize(jobOrder)
	if err := d.Validate(jobOrder); err != nil {
		return nil, err
	}

	library, err := d.library(ctx, jobOrder)
	if err != nil {
		return nil, err
	}

	bindings := make([]binding.Binding, 0, 1+len(d.arguments))
	bindings = append(bindings, binding.Binding{
		Position:  binding.Key{binding.Int(math.MinInt64)},
		ValueFrom: expr.Literal(d.baseCommand),
	})
	bindings = append(bindings, d.arguments...)

	res, err := d.builder.Build(d.inputs, jobOrder, binding.Str(""))
	if err != nil {
		return nil, toolerr.New("tool", "build", codeOr(err, toolerr.ErrCodeSchemaMismatch),
			"bind job order").WithCause(err)
	}
	bindings = append(bindings, res.Bindings...)

	if err := binding.Resolve(ctx, d.engines, bindings, jobOrder, library); err != nil {
		return nil, err
	}
	binding.Sort(bindings)

	job = &Job{
		ID:        id,
		Bindings:  bindings,
		Files:     res.Files,
		Fragments: make([][]string, len(bindings)),
	}
	for i, b := range bindings {
		job.Fragments[i] = binding.Format(b)
	}

	d.logger.Debug("job built",
		"job_id", id,
		"tool", d.id,
		"bindings", len(bindings),
		"files", len(res.Files),
	)
	return job, nil
}

// library evaluates expressionDefs in order. Literal definitions are used
// as-is; expression definitions must evaluate to a string.
func (d *Descriptor) library(ctx context.Context, jobOrder any) (string, error) {
	var lib strings.Builder
	for i, def := range d.expressionDefs {
		v, err := d.engines.Resolve(ctx, def, jobOrder, lib.String())
		if err != nil {
			return "", fmt.Errorf("expressionDefs[%d]: %w", i, err)
		}
		s, ok := v.(string)
		if !ok {
			return "", toolerr.New("tool", "build", toolerr.ErrCodeEvaluatorFailure,
				fmt.Sprintf("expressionDefs[%d] produced %s, want string", i, value.KindOf(v)))
		}
		lib.WriteString(s)
		lib.WriteString("\n")
	}
	return lib.String(), nil
}

func codeOr(err error, fallback string) string {
	if code := toolerr.CodeOf(err); code != "" {
		return code
	}
	return fallback
}
