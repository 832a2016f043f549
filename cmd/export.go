package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/export"
	"github.com/KaramelBytes/riskdash/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the currently held prediction rows to CSV or Excel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			write func(io.Writer, []backend.Record) error
			name  string
		)
		switch strings.ToLower(strings.TrimSpace(exportFormat)) {
		case "csv":
			write, name = export.WriteCSV, export.CSVFileName
		case "xlsx", "excel":
			write, name = export.WriteXLSX, export.XLSXFileName
		default:
			return fmt.Errorf("unsupported --format: %s (use csv|xlsx)", exportFormat)
		}
		if exportOutput != "" {
			name = exportOutput
		}
		sess, err := requireSession()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := write(&buf, sess.View.Rows); err != nil {
			return err
		}
		if name == "-" {
			_, err := buf.WriteTo(cmd.OutOrStdout())
			return err
		}
		if err := utils.SafeWriteFile(name, buf.Bytes()); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d rows (page %d) to %s\n", len(sess.View.Rows), sess.View.Page+1, name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format: csv|xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path ('-' for stdout; default predictions.csv or predictions.xlsx)")
}
