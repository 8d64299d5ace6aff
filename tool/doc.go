// Package tool loads command-line tool documents and builds argument lists
// from job orders.
//
// A tool document declares a base command, typed input and output ports
// with optional binding metadata, literal or computed arguments, extra named
// schemas and an expression library:
//
//	"@context": https://raw.githubusercontent.com/.../draft-2/context.json
//	baseCommand: echo
//	inputs:
//	  - port: "#message"
//	    type: string
//	    binding: {position: 1}
//	outputs: []
//
// New validates the document against the embedded CommandLineTool schema
// and synthesizes an input record from the ports. Build validates a job
// order against that record and turns it into a Job whose Argv is the
// process argument list:
//
//	doc, err := tool.LoadDocument("echo.yaml")
//	d, err := tool.New(doc, tool.WithLogger(logger))
//	job, err := d.Build(ctx, map[string]any{"message": "hi"})
//	job.Argv() // ["echo", "hi"]
//
// Build records a "tool.Build" span and the toolbind.builds and
// toolbind.build.failures counters through OpenTelemetry.
package tool
