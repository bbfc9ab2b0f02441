package cmd

import (
	"github.com/spf13/cobra"

	"github.com/graphpack/pkg/codec"
	"github.com/graphpack/pkg/writer"
)

var inspectFormat string

// inspectCmd prints the decoded bundles of an artifact
var inspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Print the bundles stored under a key",
	Long: `Download and decode an artifact without rebuilding it. The header, every
bundle and every field are printed; references render as &type:serial.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := writer.New[codec.ArtifactView](inspectFormat)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		view, err := svc.Inspect(ctx, args[0])
		if err != nil {
			return err
		}
		return w.Write(view, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "json", "Output format: json or yaml")
}
