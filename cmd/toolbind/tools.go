package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) newToolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List tools registered by workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dialRedis()
			if err != nil {
				return err
			}
			defer client.Close()

			tools, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tools)
			}

			if len(tools) == 0 {
				_, err := fmt.Fprintln(out, "No tools registered")
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tWORKERS\tCOMMAND\tINPUTS\tDESCRIPTION")
			for _, t := range tools {
				workers, err := client.GetWorkerCount(cmd.Context(), t.Name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					t.Name, workers, joinArgv(t.BaseCommand), strings.Join(t.Inputs, ","), t.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tools as JSON")
	return cmd
}
