package cmd

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/dataset"
	"github.com/KaramelBytes/riskdash/internal/eda"
	"github.com/KaramelBytes/riskdash/internal/render"
	"github.com/spf13/cobra"
)

var uploadNoSummary bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Upload a CSV and show the first page of predictions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := dataset.Open(args[0])
		if err != nil {
			return err
		}
		if limit := cfg.MaxUploadBytes(); limit > 0 && h.Size > limit {
			return fmt.Errorf("%s is %d bytes, limit is %d MB: %w", h.Name, h.Size, cfg.MaxUploadMB, dataset.ErrTooLarge)
		}
		out := cmd.OutOrStdout()
		for _, w := range h.Warnings() {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w)
		}

		sess, err := loadSession()
		if err != nil {
			return err
		}
		dash := newDashboard(newClient(), sess)
		fmt.Fprintf(out, "Uploading %s (%d bytes)...\n", h.Name, h.Size)
		v, err := dash.Upload(cmd.Context(), h)
		if err != nil {
			return err
		}
		sess.Uploaded(v)
		if err := sess.Save(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Fprintf(out, "✓ Uploaded %s: %d rows, %d pages\n\n", h.Name, v.TotalRows, v.PageCount())
		return printView(out, v, !uploadNoSummary)
	},
}

// printView writes the prediction table and, optionally, the summary bars.
func printView(w io.Writer, v dashboard.View, withSummary bool) error {
	if err := render.Table(w, v); err != nil {
		return err
	}
	if !withSummary || !v.Loaded {
		return nil
	}
	fmt.Fprintln(w)
	return render.Summary(w, eda.Project(v.Summary))
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVar(&uploadNoSummary, "no-summary", false, "do not print the summary bars")
}
