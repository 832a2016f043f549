package cmd

import (
	"fmt"
	"os"

	"github.com/KaramelBytes/riskdash/internal/dataset"
	"github.com/spf13/cobra"
)

var inspectOutput string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.csv>",
	Short: "Check a CSV locally before uploading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dataset.Open(args[0])
		if err != nil {
			return err
		}
		sh, err := dataset.Inspect(h)
		if err != nil {
			return err
		}
		md := sh.Markdown()
		if limit := cfg.MaxUploadBytes(); limit > 0 && h.Size > limit {
			md += fmt.Sprintf("\n⚠ %d bytes exceeds the %d MB upload limit\n", h.Size, cfg.MaxUploadMB)
		}
		if inspectOutput != "" {
			if err := os.WriteFile(inspectOutput, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote inspection to %s\n", inspectOutput)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "", "optional path to write the report to")
}
