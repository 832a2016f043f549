package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/eda"
	"github.com/KaramelBytes/riskdash/internal/render"
	"github.com/KaramelBytes/riskdash/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	chartsOut    string
	chartsFormat string
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Render the summary of the current page as chart images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := render.ParseFormat(chartsFormat)
		if err != nil {
			return err
		}
		sess, err := requireSession()
		if err != nil {
			return err
		}
		c := eda.Project(sess.View.Summary)
		if c.Empty() {
			fmt.Fprintln(cmd.OutOrStdout(), "No summary available.")
			return nil
		}
		if err := utils.EnsureDir(chartsOut); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		opts := render.ChartOptions{Width: cfg.ChartWidth, Height: cfg.ChartHeight, Format: format}
		written, err := renderCharts(cmd.Context(), c, chartsOut, opts, cfg.RenderWorkers)
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d charts to %s\n", len(written), chartsOut)
		return nil
	},
}

type chartJob struct {
	file string
	draw func(*bytes.Buffer) error
}

// renderCharts writes one image per series using at most workers goroutines and
// returns the written paths in series order. Series without bars are skipped.
func renderCharts(ctx context.Context, c eda.Charts, dir string, opts render.ChartOptions, workers int) ([]string, error) {
	var jobs []chartJob
	for i, s := range c.Numeric {
		s := s
		jobs = append(jobs, chartJob{
			file: fmt.Sprintf("numeric-%02d-%s.%s", i+1, slug(s.Column), opts.Format),
			draw: func(b *bytes.Buffer) error { return render.NumericChart(b, s, opts) },
		})
	}
	for i, s := range c.Categorical {
		s := s
		jobs = append(jobs, chartJob{
			file: fmt.Sprintf("categorical-%02d-%s.%s", i+1, slug(s.Column), opts.Format),
			draw: func(b *bytes.Buffer) error { return render.CategoricalChart(b, s, opts) },
		})
	}

	if workers <= 0 {
		workers = 1
	}
	written := make([]string, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := job.draw(&buf); err != nil {
				if errors.Is(err, render.ErrNoBars) {
					return nil
				}
				return err
			}
			path := filepath.Join(dir, job.file)
			if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			written[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := written[:0]
	for _, p := range written {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if s == "" {
		return "column"
	}
	return s
}

func init() {
	rootCmd.AddCommand(chartsCmd)
	chartsCmd.Flags().StringVarP(&chartsOut, "out", "o", "charts", "directory to write chart images to")
	chartsCmd.Flags().StringVar(&chartsFormat, "format", "png", "image format: png|svg")
}
