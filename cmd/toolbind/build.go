package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/toolbind/schema"
	"github.com/zero-day-ai/toolbind/tool"
)

// buildOutput is the --json form of a built job.
type buildOutput struct {
	*tool.Job
	Argv []string `json:"argv"`
}

func (a *app) newBuildCmd() *cobra.Command {
	var (
		toolPath string
		jobPath  string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "build --job JOB_ORDER [--tool TOOL_DOCUMENT]",
		Short: "Build the argument list of a job order",
		Long: `Validate a job order against the tool's input schema and print the
resulting argument list, shell-quoted on one line.

Use --job - to read the job order from stdin. With --json the output
includes the build id, the resolved bindings in order and the File values
referenced by the job order.

Examples:
  toolbind build --tool echo.yaml --job job.json
  echo '{"message": "hi"}' | toolbind build --tool echo.yaml --job - --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDescriptor(toolPath)
			if err != nil {
				return err
			}
			jobOrder, err := loadJobOrder(cmd, jobPath)
			if err != nil {
				return err
			}

			job, err := d.Build(cmd.Context(), jobOrder)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(buildOutput{Job: job, Argv: job.Argv()})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), joinArgv(job.Argv()))
			return err
		},
	}

	cmd.Flags().StringVarP(&toolPath, "tool", "t", "", "Path to the tool document (default: tool.path from toolbind.yaml)")
	cmd.Flags().StringVarP(&jobPath, "job", "j", "", "Path to the job order, or - for stdin (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the build as JSON")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func (a *app) newValidateCmd() *cobra.Command {
	var (
		toolPath string
		jobPath  string
	)

	cmd := &cobra.Command{
		Use:   "validate [--job JOB_ORDER] [--tool TOOL_DOCUMENT]",
		Short: "Check a tool document and, optionally, a job order",
		Long: `Load the tool document and check it against the CommandLineTool schema.
With --job, also validate the job order against the tool's input schema and
report the path of the first mismatch.

Exit codes:
  0  - valid
  2  - the job order does not match the input schema
  11 - the tool document or job order could not be loaded`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDescriptor(toolPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jobPath == "" {
				_, err := fmt.Fprintf(out, "tool %s: ok (%d inputs)\n", displayID(d), len(d.InputSchema().Fields))
				return err
			}

			jobOrder, err := loadJobOrder(cmd, jobPath)
			if err != nil {
				return err
			}
			if err := d.Validate(jobOrder); err != nil {
				var ve *schema.ValidationError
				if errors.As(err, &ve) && ve.Path() != "" {
					fmt.Fprintf(out, "invalid at %s: %s\n", ve.Path(), ve.Leaf().Reason)
				}
				return err
			}
			_, err = fmt.Fprintln(out, "job order: ok")
			return err
		},
	}

	cmd.Flags().StringVarP(&toolPath, "tool", "t", "", "Path to the tool document (default: tool.path from toolbind.yaml)")
	cmd.Flags().StringVarP(&jobPath, "job", "j", "", "Path to a job order to validate, or - for stdin")

	return cmd
}

func displayID(d *tool.Descriptor) string {
	if d.ID() == "" {
		return "(anonymous)"
	}
	return d.ID()
}
