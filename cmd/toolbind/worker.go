package main

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/toolbind/worker"
)

func (a *app) newWorkerCmd() *cobra.Command {
	var (
		toolPath    string
		toolName    string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "worker [--tool TOOL_DOCUMENT]",
		Short: "Serve a tool from the Redis work queue",
		Long: `Pop job orders from toolbind:<name>:queue, build them and publish the
results on results:<job id> until interrupted.

The queue name defaults to tool.name from toolbind.yaml, then to the id of
the tool document. Concurrency and timeouts come from the worker section.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.loadDescriptor(toolPath)
			if err != nil {
				return err
			}
			client, err := a.dialRedis()
			if err != nil {
				return err
			}
			defer client.Close()

			if toolName == "" {
				toolName = a.cfg.ToolName(d.ID())
			}
			return worker.Run(cmd.Context(), d, worker.Options{
				Client:      client,
				ToolName:    toolName,
				Concurrency: concurrency,
				Logger:      a.logger,
				Config:      a.cfg.Worker,
			})
		},
	}

	cmd.Flags().StringVarP(&toolPath, "tool", "t", "", "Path to the tool document (default: tool.path from toolbind.yaml)")
	cmd.Flags().StringVar(&toolName, "name", "", "Queue name to serve")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Number of worker goroutines (default: worker.concurrency or 4)")

	return cmd
}
