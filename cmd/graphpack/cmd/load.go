package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphpack/internal/demo"
	"github.com/graphpack/pkg/writer"
)

var loadFormat string

// loadCmd rebuilds a stored team graph
var loadCmd = &cobra.Command{
	Use:   "load <key>",
	Short: "Rebuild a stored team and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := writer.New[*demo.TeamSummary](loadFormat)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := svc.Load(ctx, args[0])
		if err != nil {
			return err
		}
		team, ok := result.Root.(*demo.Team)
		if !ok {
			return fmt.Errorf("artifact %s holds a %T, not a team", args[0], result.Root)
		}
		logger.Debug("Rebuilt %d entities in %d sweeps (%d retries)",
			result.Stats.Entities, result.Stats.Sweeps, result.Stats.Retries)
		return w.Write(demo.Summarize(team), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVarP(&loadFormat, "format", "f", "yaml", "Output format: json or yaml")
}
