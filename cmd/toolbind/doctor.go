package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/toolbind/health"
)

func (a *app) newDoctorCmd() *cobra.Command {
	var (
		toolPath string
		toolName string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [--tool TOOL] [--name NAME]",
		Short: "Check that a tool can be built and served",
		Long: `Run environment checks for a tool document: the document exists and
loads, its base command is on PATH, the Redis work queue is reachable and
at least one worker serves the tool.

A missing binary or an idle queue is reported as degraded. The command
fails only when a check is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if toolPath == "" {
				toolPath = a.cfg.ToolPath()
			}

			var checks []health.Status
			if toolPath != "" {
				file := health.FileCheck(toolPath)
				checks = append(checks, file)
				if file.IsHealthy() {
					d, err := a.loadDescriptor(toolPath)
					if err != nil {
						checks = append(checks, health.Status{
							Name:    "document",
							Status:  health.StatusUnhealthy,
							Message: err.Error(),
						})
					} else {
						checks = append(checks, health.ToolChecks(d)...)
						if toolName == "" {
							toolName = a.cfg.ToolName(d.ID())
						}
					}
				}
			}
			if toolName == "" {
				toolName = a.cfg.ToolName("")
			}

			url := a.redisURL
			if url == "" {
				url = a.cfg.Redis.GetURL()
			}
			redis := health.RedisURLCheck(ctx, url)
			checks = append(checks, redis)
			if redis.IsHealthy() && toolName != "" {
				client, err := a.dialRedis()
				if err != nil {
					return err
				}
				defer client.Close()
				checks = append(checks, health.WorkersCheck(ctx, client, toolName))
			}

			overall := health.Combine(checks...)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"status": overall, "checks": checks}); err != nil {
					return err
				}
			} else {
				for _, c := range checks {
					fmt.Fprintf(out, "%-9s %-9s %s\n", c.Name, c.Status, c.Message)
				}
				fmt.Fprintf(out, "%s: %s\n", overall.Status, overall.Message)
			}

			if overall.IsUnhealthy() {
				return &cliError{code: ExitError, msg: overall.Message}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&toolPath, "tool", "t", "", "Path to the tool document (default: tool.path from toolbind.yaml)")
	cmd.Flags().StringVar(&toolName, "name", "", "Tool queue name (default: tool.name or the document id)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print checks as JSON")
	return cmd
}
