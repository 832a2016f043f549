package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/metrics"
	"github.com/KaramelBytes/riskdash/internal/web"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard in a browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.ListenAddr
		if cmd.Flags().Changed("addr") && serveAddr != "" {
			addr = serveAddr
		}
		sess, err := loadSession()
		if err != nil {
			return err
		}

		var mu sync.Mutex
		m := metrics.New()
		client := newClient(backend.WithObserver(m))
		dash := newDashboard(client, sess, dashboard.WithFlowObserver(m))
		srv, err := web.New(dash, client,
			web.WithLogger(log),
			web.WithMetrics(m.Handler()),
			web.WithMaxUploadBytes(cfg.MaxUploadBytes()),
			web.WithChartSize(cfg.ChartWidth, cfg.ChartHeight),
			web.WithCommitHook(func(_ dashboard.View, uploaded bool) {
				// Handlers run concurrently; persist whatever the store holds now.
				mu.Lock()
				defer mu.Unlock()
				if uploaded {
					sess.Uploaded(dash.View())
				} else {
					sess.Paged(dash.View())
				}
				if err := sess.Save(); err != nil {
					log.WithError(err).Warn("save session")
				}
			}),
		)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log.WithFields(logrus.Fields{"backend": client.BaseURL(), "session": sess.Path()}).Info("starting dashboard")
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Dashboard on http://%s (backend %s). Press Ctrl+C to stop.\n", addr, client.BaseURL())
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config listen_addr)")
}
