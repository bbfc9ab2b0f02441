package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphpack/pkg/model"
)

var listOpts model.ListOptions

// listCmd prints the artifact catalog
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored artifacts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		artifacts, err := svc.List(ctx, listOpts)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tROOT\tBUNDLES\tSIZE\tCOMPRESSION\tCREATED")
		for _, a := range artifacts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
				a.Key, a.RootType, a.BundleCount, a.StoredSize, a.Compression, a.CreatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

// deleteCmd removes artifacts
var deleteCmd = &cobra.Command{
	Use:   "delete <key>...",
	Short: "Delete stored artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()
		return svc.DeleteBatch(ctx, args)
	},
}

func init() {
	rootCmd.AddCommand(listCmd, deleteCmd)
	listCmd.Flags().StringVar(&listOpts.RootType, "root-type", "", "Only list artifacts with this root type")
	listCmd.Flags().IntVar(&listOpts.Limit, "limit", 20, "Maximum number of artifacts (0 for all)")
	listCmd.Flags().IntVar(&listOpts.Offset, "offset", 0, "Number of artifacts to skip")
}
