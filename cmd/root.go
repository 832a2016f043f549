package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/KaramelBytes/riskdash/internal/backend"
	cfgpkg "github.com/KaramelBytes/riskdash/internal/config"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/logging"
	"github.com/KaramelBytes/riskdash/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// HTTP flags (override config if set)
	flagBackendURL     string
	flagHTTPTimeoutSec int

	// Loaded configuration
	cfg *cfgpkg.Global
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "riskdash",
	Short: "Insurance risk dashboard: upload policies, page through predictions, explore the summary",
	Long: `riskdash sends a CSV of insurance policies to the analytics backend, shows the
predicted claim probability and premium ten rows at a time, and charts the summary
statistics the backend computes. The last view is kept between invocations, so
"riskdash page next" continues where "riskdash upload" left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.riskdash/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagBackendURL, "backend-url", "", "analytics backend base URL (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so `config set` can repair a broken file
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{BackendURL: backend.DefaultBaseURL, HTTPTimeoutSec: 120, MaxUploadMB: 10}
		if dir, derr := cfgpkg.Dir(); derr == nil {
			c.SessionDir = dir
		}
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("backend-url") && flagBackendURL != "" {
		cfg.BackendURL = flagBackendURL
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}

	opts := cfg.Logging()
	if debug {
		opts.Level = "debug"
	}
	l, err := logging.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; using info level text logs\n", err)
		l, _ = logging.New(logging.Options{})
	}
	log = l
}

// newClient builds the backend client from the effective configuration.
func newClient(opts ...backend.Option) *backend.Client {
	opts = append([]backend.Option{backend.WithLogger(log)}, opts...)
	return backend.NewClient(cfg.BackendURL, time.Duration(cfg.HTTPTimeoutSec)*time.Second, opts...)
}

func loadSession() (*session.Session, error) {
	return session.Load(cfg.SessionDir)
}

// requireSession loads the session and fails when nothing has been uploaded yet.
func requireSession() (*session.Session, error) {
	s, err := loadSession()
	if err != nil {
		return nil, err
	}
	if s.Empty() {
		return nil, fmt.Errorf("no dataset uploaded yet; run 'riskdash upload <file.csv>' first")
	}
	return s, nil
}

func newDashboard(api dashboard.API, s *session.Session, opts ...dashboard.Option) *dashboard.Dashboard {
	opts = append([]dashboard.Option{dashboard.WithLogger(log)}, opts...)
	return dashboard.New(api, s.View, opts...)
}
