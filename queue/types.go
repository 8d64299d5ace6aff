package queue

import (
	"fmt"
	"slices"
	"time"
)

// WorkItem carries one job order of a submitted batch to a tool's queue.
type WorkItem struct {
	// JobID groups the items of one submission.
	JobID string `json:"job_id"`

	// Index is the zero-based position of the job order in its batch.
	Index int `json:"index"`

	// Total is the batch size.
	Total int `json:"total"`

	// Tool names the descriptor that builds the job order.
	Tool string `json:"tool"`

	// JobOrderJSON is the job order encoded as JSON.
	JobOrderJSON string `json:"job_order_json"`

	// TraceID and SpanID carry the submitter's span, hex encoded.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// SubmittedAt is in Unix milliseconds.
	SubmittedAt int64 `json:"submitted_at"`
}

// Result is what a worker publishes on ResultsChannel(JobID) after building
// a WorkItem. Exactly one of Argv and Error is set.
type Result struct {
	JobID string `json:"job_id"`
	Index int    `json:"index"`

	// BuildID identifies the tool.Job that produced Argv.
	BuildID string `json:"build_id,omitempty"`

	Argv  []string `json:"argv,omitempty"`
	Files []any    `json:"files,omitempty"`

	// ErrorCode is a toolerr code such as SCHEMA_MISMATCH.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	WorkerID string `json:"worker_id"`

	// StartedAt and CompletedAt are in Unix milliseconds.
	StartedAt   int64 `json:"started_at"`
	CompletedAt int64 `json:"completed_at"`
}

// ToolMeta is the registration record of a tool, stored in MetaKey(Name).
type ToolMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BaseCommand []string `json:"base_command"`

	// Inputs lists the input field names in declaration order.
	Inputs []string `json:"inputs"`

	// WorkerCount is a snapshot taken at registration; the live value is
	// kept under WorkersKey(Name).
	WorkerCount int `json:"worker_count"`
}

// checker records the first failed requirement.
type checker struct{ err error }

func (c *checker) require(ok bool, format string, args ...any) {
	if c.err == nil && !ok {
		c.err = fmt.Errorf(format, args...)
	}
}

// IsValid reports the first missing or inconsistent field.
func (w *WorkItem) IsValid() error {
	var c checker
	c.require(w.JobID != "", "job_id is required")
	c.require(w.Index >= 0, "index must be non-negative, got %d", w.Index)
	c.require(w.Total > 0, "total must be positive, got %d", w.Total)
	c.require(w.Index < w.Total, "index %d is out of bounds for total %d", w.Index, w.Total)
	c.require(w.Tool != "", "tool name is required")
	c.require(w.JobOrderJSON != "", "job_order_json is required")
	c.require(w.SubmittedAt > 0, "submitted_at must be positive, got %d", w.SubmittedAt)
	return c.err
}

// Age is the time since submission, zero when SubmittedAt is unset.
func (w *WorkItem) Age() time.Duration {
	if w.SubmittedAt <= 0 {
		return 0
	}
	return time.Since(time.UnixMilli(w.SubmittedAt))
}

func (r *Result) HasError() bool { return r.Error != "" }

// Duration is the time the worker spent on the item.
func (r *Result) Duration() time.Duration {
	if r.StartedAt <= 0 || r.CompletedAt <= 0 {
		return 0
	}
	return time.UnixMilli(r.CompletedAt).Sub(time.UnixMilli(r.StartedAt))
}

// IsValid reports the first missing or inconsistent field.
func (r *Result) IsValid() error {
	var c checker
	c.require(r.JobID != "", "job_id is required")
	c.require(r.Index >= 0, "index must be non-negative, got %d", r.Index)
	c.require(r.WorkerID != "", "worker_id is required")
	c.require(r.StartedAt > 0, "started_at must be positive, got %d", r.StartedAt)
	c.require(r.CompletedAt > 0, "completed_at must be positive, got %d", r.CompletedAt)
	c.require(r.CompletedAt >= r.StartedAt, "completed_at (%d) cannot be before started_at (%d)", r.CompletedAt, r.StartedAt)
	c.require(r.HasError() || len(r.Argv) > 0, "argv is required when error is empty")
	return c.err
}

// IsValid reports the first missing or inconsistent field.
func (t *ToolMeta) IsValid() error {
	var c checker
	c.require(t.Name != "", "tool name is required")
	c.require(len(t.BaseCommand) > 0, "base_command is required")
	c.require(t.WorkerCount >= 0, "worker_count must be non-negative, got %d", t.WorkerCount)
	return c.err
}

// HasInput reports whether the tool declares an input field called name.
func (t *ToolMeta) HasInput(name string) bool {
	return slices.Contains(t.Inputs, name)
}
