package cmd

import (
	"fmt"

	"github.com/KaramelBytes/riskdash/internal/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or discard the persisted dashboard session",
}

var sessionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the session holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if s.Empty() {
			fmt.Fprintf(out, "(no session at %s)\n", s.Path())
			return nil
		}
		fmt.Fprintf(out, "id: %s\n", s.ID)
		fmt.Fprintf(out, "dataset: %s\n", s.Dataset)
		fmt.Fprintf(out, "uploaded_at: %s\n", s.UploadedAt.Format("2006-01-02 15:04:05Z07:00"))
		fmt.Fprintf(out, "page: %d of %d\n", s.View.Page+1, s.View.PageCount())
		fmt.Fprintf(out, "total_rows: %d\n", s.View.TotalRows)
		fmt.Fprintf(out, "path: %s\n", s.Path())
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the persisted session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.Clear(cfg.SessionDir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Session cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInfoCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}
