package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var edaCmd = &cobra.Command{
	Use:   "eda",
	Short: "Show the shape of the backend's reference dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := newClient().DatasetInfo(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Rows: %d\nColumns: %d\n", info.Rows, info.Columns)
		for i, c := range info.ColumnNames {
			fmt.Fprintf(out, "%d. %s\n", i+1, c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(edaCmd)
}
