// Package web serves the prediction dashboard over HTTP.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/logging"
	"github.com/KaramelBytes/riskdash/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcMap = template.FuncMap{
	"inc":      func(i int) int { return i + 1 },
	"fmtValue": func(v float64) string { return backend.FormatValue(v) },
}

// Backend is the part of the backend client the extra pages use.
type Backend interface {
	Predict(ctx context.Context, features map[string]any) (json.RawMessage, error)
	DatasetInfo(ctx context.Context) (*backend.DatasetInfo, error)
}

// CommitFunc is called after every view change, e.g. to persist the session.
type CommitFunc func(v dashboard.View, uploaded bool)

// Server is the dashboard web application.
type Server struct {
	dash      *dashboard.Dashboard
	api       Backend
	router    *chi.Mux
	templates *template.Template
	log       logrus.FieldLogger
	metrics   http.Handler
	chart     render.ChartOptions
	maxUpload int64
	onCommit  CommitFunc
}

type Option func(*Server)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithMaxUploadBytes limits the size of an uploaded CSV; 0 means unlimited.
func WithMaxUploadBytes(n int64) Option { return func(s *Server) { s.maxUpload = n } }

// WithChartSize sets the size of the chart cards.
func WithChartSize(width, height int) Option {
	return func(s *Server) { s.chart.Width, s.chart.Height = width, height }
}

func WithCommitHook(fn CommitFunc) Option { return func(s *Server) { s.onCommit = fn } }

// New builds the router and parses the embedded templates.
func New(dash *dashboard.Dashboard, api Backend, opts ...Option) (*Server, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{
		dash:      dash,
		api:       api,
		router:    chi.NewRouter(),
		templates: tmpl,
		log:       logging.Discard(),
		chart:     render.ChartOptions{Format: render.SVG},
	}
	for _, o := range opts {
		o(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Post("/upload", s.handleUpload)
	s.router.Post("/page", s.handlePage)

	s.router.Get("/charts/numeric/{i}.svg", s.handleNumericChart)
	s.router.Get("/charts/categorical/{i}.svg", s.handleCategoricalChart)

	s.router.Get("/export/predictions.csv", s.handleExportCSV)
	s.router.Get("/export/predictions.xlsx", s.handleExportXLSX)

	s.router.Get("/predict", s.handlePredictForm)
	s.router.Post("/predict", s.handlePredict)
	s.router.Get("/eda", s.handleEDA)

	s.router.Get("/api/view", s.handleAPIView)
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) commit(v dashboard.View, uploaded bool) {
	if s.onCommit != nil {
		s.onCommit(v, uploaded)
	}
}
