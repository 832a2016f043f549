package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/spf13/cobra"
)

var pageSummary bool

var pageCmd = &cobra.Command{
	Use:   "page next|prev|<n>",
	Short: "Load another page of predictions (n is 1-based)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := requireSession()
		if err != nil {
			return err
		}
		dash := newDashboard(newClient(), sess)
		var v dashboard.View
		switch arg := strings.ToLower(strings.TrimSpace(args[0])); arg {
		case "next", "n":
			v, err = dash.Next(cmd.Context())
		case "prev", "previous", "p":
			v, err = dash.Prev(cmd.Context())
		default:
			n, convErr := strconv.Atoi(arg)
			if convErr != nil {
				return fmt.Errorf("invalid page %q (use next, prev or a page number)", args[0])
			}
			v, err = dash.LoadPage(cmd.Context(), n-1)
		}
		if err != nil {
			return err
		}
		sess.Paged(v)
		if err := sess.Save(); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return printView(cmd.OutOrStdout(), v, pageSummary)
	},
}

var showCharts bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current page of the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession()
		if err != nil {
			return err
		}
		return printView(cmd.OutOrStdout(), sess.View, showCharts)
	},
}

func init() {
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(showCmd)
	pageCmd.Flags().BoolVar(&pageSummary, "summary", false, "also print the summary bars for the page")
	showCmd.Flags().BoolVar(&showCharts, "charts", false, "also print the summary bars")
}
