package tool

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/toolbind/expr"
)

// Option configures a Descriptor.
type Option func(*descriptorConfig)

type descriptorConfig struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	evaluators map[string]expr.Evaluator
}

// WithLogger sets the logger used for build diagnostics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *descriptorConfig) {
		c.logger = logger
	}
}

// WithTracer sets the tracer that records a "tool.Build" span per build.
// Defaults to the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *descriptorConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter for the build counters.
// Defaults to the global meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(c *descriptorConfig) {
		c.meter = meter
	}
}

// WithEvaluator registers ev for expressions whose @type is typ, replacing
// any default engine for that type.
func WithEvaluator(typ string, ev expr.Evaluator) Option {
	return func(c *descriptorConfig) {
		if c.evaluators == nil {
			c.evaluators = make(map[string]expr.Evaluator)
		}
		c.evaluators[typ] = ev
	}
}
