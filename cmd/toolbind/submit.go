package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/toolbind/queue"
	"github.com/zero-day-ai/toolbind/value"
)

func (a *app) newSubmitCmd() *cobra.Command {
	var (
		toolName string
		jobPaths []string
		timeout  time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "submit --job JOB_ORDER [--job JOB_ORDER ...] [--name TOOL]",
		Short: "Build job orders on remote workers",
		Long: `Push one or more job orders to a tool's work queue and wait for the
workers to publish their argument lists. All job orders share one job id and
results are printed in submission order.

Examples:
  toolbind submit --name echo --job a.json --job b.json
  toolbind submit --job a.json --timeout 10s --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if toolName == "" {
				toolName = a.cfg.ToolName("")
			}
			if toolName == "" {
				return &cliError{code: ExitUsage, msg: "no tool name: pass --name or set tool.name in toolbind.yaml"}
			}

			// Job orders are read and re-encoded up front so nothing is queued
			// when one of them cannot be read. EncodeJSON keeps 2.0 a float on
			// the wire so workers validate exactly what build would.
			orders := make([]string, len(jobPaths))
			for i, path := range jobPaths {
				jobOrder, err := loadJobOrder(cmd, path)
				if err != nil {
					return err
				}
				data, err := value.EncodeJSON(jobOrder)
				if err != nil {
					return fmt.Errorf("failed to encode job order %s: %w", path, err)
				}
				orders[i] = string(data)
			}

			client, err := a.dialRedis()
			if err != nil {
				return err
			}
			defer client.Close()

			jobID := uuid.NewString()
			ctx, span := otel.Tracer("github.com/zero-day-ai/toolbind/cmd/toolbind").Start(cmd.Context(), "toolbind.submit",
				trace.WithAttributes(
					attribute.String("job.id", jobID),
					attribute.String("tool.name", toolName),
					attribute.Int("job.count", len(orders)),
				),
			)
			defer span.End()

			ctx, cancel := contextWithTimeout(ctx, timeout)
			defer cancel()

			results, err := client.Subscribe(ctx, queue.ResultsChannel(jobID))
			if err != nil {
				return err
			}

			sc := span.SpanContext()
			for i, order := range orders {
				item := queue.WorkItem{
					JobID:        jobID,
					Index:        i,
					Total:        len(orders),
					Tool:         toolName,
					JobOrderJSON: order,
					SubmittedAt:  time.Now().UnixMilli(),
				}
				if sc.IsValid() {
					item.TraceID = sc.TraceID().String()
					item.SpanID = sc.SpanID().String()
				}
				if err := client.Push(ctx, queue.QueueKey(toolName), item); err != nil {
					return err
				}
			}
			a.logger.Debug("job orders submitted", "job_id", jobID, "tool", toolName, "count", len(orders))

			collected := make([]*queue.Result, len(orders))
			remaining := len(orders)
			for remaining > 0 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("waiting for %d of %d results: %w", remaining, len(orders), ctx.Err())
				case r, ok := <-results:
					if !ok {
						return fmt.Errorf("result subscription closed with %d results outstanding", remaining)
					}
					if r.Index < 0 || r.Index >= len(orders) || collected[r.Index] != nil {
						continue
					}
					collected[r.Index] = &r
					remaining--
				}
			}

			return printResults(cmd, jobPaths, collected, asJSON)
		},
	}

	cmd.Flags().StringVar(&toolName, "name", "", "Tool queue name (default: tool.name from toolbind.yaml)")
	cmd.Flags().StringArrayVarP(&jobPaths, "job", "j", nil, "Path to a job order, or - for stdin (repeatable, required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Maximum time to wait for results (0 waits forever)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	_ = cmd.MarkFlagRequired("job")

	return cmd
}

func printResults(cmd *cobra.Command, jobPaths []string, results []*queue.Result, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	var failed int
	for i, r := range results {
		if r.HasError() {
			failed++
			fmt.Fprintf(out, "%s: error %s: %s\n", jobPaths[i], r.ErrorCode, r.Error)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", jobPaths[i], joinArgv(r.Argv))
	}
	if failed > 0 {
		return &cliError{code: ExitRejected, msg: fmt.Sprintf("%d of %d job orders failed", failed, len(results))}
	}
	return nil
}

// contextWithTimeout is context.WithTimeout where a zero timeout means none.
func contextWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
