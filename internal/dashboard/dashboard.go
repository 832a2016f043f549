// Package dashboard holds the view state of the prediction dashboard and the two
// controllers that change it: the upload flow and the pagination flow.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/dataset"
	"github.com/KaramelBytes/riskdash/internal/logging"
	"github.com/sirupsen/logrus"
)

// Uploader sends a CSV to the backend.
type Uploader interface {
	UploadCSV(ctx context.Context, filename string, r io.Reader) (*backend.UploadResult, error)
}

// ChunkFetcher requests one page of predictions.
type ChunkFetcher interface {
	GetChunk(ctx context.Context, page int) (*backend.ChunkResult, error)
}

// API is the part of the backend client the dashboard needs.
type API interface {
	Uploader
	ChunkFetcher
}

// FlowObserver is told how each flow attempt ended.
type FlowObserver interface {
	ObserveFlow(flow, outcome string)
}

// Flow names and outcomes reported to a FlowObserver.
const (
	FlowUpload = "upload"
	FlowPage   = "page"

	OutcomeSucceeded  = "succeeded"
	OutcomeFailed     = "failed"
	OutcomeRejected   = "rejected"
	OutcomeSuperseded = "superseded"
)

type Dashboard struct {
	store    *Store
	api      API
	upload   Flow
	paging   Flow
	log      logrus.FieldLogger
	observer FlowObserver
}

// Option customizes a Dashboard.
type Option func(*Dashboard)

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.log = l
		}
	}
}

func WithFlowObserver(o FlowObserver) Option {
	return func(d *Dashboard) { d.observer = o }
}

// New returns a dashboard whose store starts from initial.
func New(api API, initial View, opts ...Option) *Dashboard {
	d := &Dashboard{store: NewStore(initial), api: api, log: logging.Discard()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// View returns the current view.
func (d *Dashboard) View() View { return d.store.View() }

// UploadFlow and PageFlow expose the status of each trigger.
func (d *Dashboard) UploadFlow() *Flow { return &d.upload }
func (d *Dashboard) PageFlow() *Flow   { return &d.paging }

func (d *Dashboard) observe(flow, outcome string) {
	if d.observer != nil {
		d.observer.ObserveFlow(flow, outcome)
	}
}

// Upload sends the dataset and, on success, replaces rows, summary and total and
// resets the page to 0. On failure the current view is left untouched.
func (d *Dashboard) Upload(ctx context.Context, h *dataset.Handle) (View, error) {
	if h == nil {
		return d.store.View(), d.RejectUpload(ErrNoFile)
	}
	if err := d.upload.begin(); err != nil {
		d.observe(FlowUpload, OutcomeRejected)
		return d.store.View(), err
	}
	log := d.log.WithFields(logrus.Fields{"flow": FlowUpload, "file": h.Name, "bytes": h.Size})
	t := d.store.issue()
	log.Info("uploading dataset")

	v, err := d.doUpload(ctx, t, h)
	d.upload.finish(err)
	switch {
	case err == nil:
		d.paging.reset()
		d.observe(FlowUpload, OutcomeSucceeded)
		log.WithFields(logrus.Fields{"total_rows": v.TotalRows, "pages": v.PageCount()}).Info("upload complete")
	case errors.Is(err, ErrSuperseded):
		d.observe(FlowUpload, OutcomeSuperseded)
		log.Warn("upload response superseded")
	default:
		d.observe(FlowUpload, OutcomeFailed)
		log.WithError(err).Error("upload failed")
	}
	return v, err
}

// RejectUpload records an upload that failed local validation and never reached
// the backend, so it surfaces like any other upload error.
func (d *Dashboard) RejectUpload(err error) error {
	uerr := &UploadError{Err: err}
	d.upload.fail(uerr)
	d.observe(FlowUpload, OutcomeRejected)
	d.log.WithField("flow", FlowUpload).WithError(err).Warn("upload rejected")
	return uerr
}

func (d *Dashboard) doUpload(ctx context.Context, t ticket, h *dataset.Handle) (View, error) {
	rc, err := h.Open()
	if err != nil {
		return d.store.View(), &UploadError{Err: err}
	}
	defer rc.Close()
	res, err := d.api.UploadCSV(ctx, h.Name, rc)
	if err != nil {
		return d.store.View(), &UploadError{Err: err}
	}
	total := len(res.Preview)
	if res.TotalRows != nil {
		total = *res.TotalRows
	}
	return d.store.commitUpload(t, View{
		Rows:      res.Preview,
		Summary:   res.Summary,
		Page:      0,
		TotalRows: total,
		Loaded:    true,
		Source:    h.Name,
	})
}

// LoadPage requests page index and, on success, replaces rows and summary and sets
// the page to the index the backend reports having served.
func (d *Dashboard) LoadPage(ctx context.Context, index int) (View, error) {
	cur := d.store.View()
	if !cur.Loaded || !InRange(index, cur.TotalRows) {
		err := fmt.Errorf("page %d of %d: %w", index+1, cur.PageCount(), ErrPageOutOfRange)
		d.observe(FlowPage, OutcomeRejected)
		return cur, err
	}
	if err := d.paging.begin(); err != nil {
		d.observe(FlowPage, OutcomeRejected)
		return cur, err
	}
	log := d.log.WithFields(logrus.Fields{"flow": FlowPage, "requested": index})
	t := d.store.issue()

	v, err := d.doLoadPage(ctx, t, index)
	d.paging.finish(err)
	switch {
	case err == nil:
		d.observe(FlowPage, OutcomeSucceeded)
		log.WithField("page", v.Page).Debug("page loaded")
	case errors.Is(err, ErrSuperseded):
		d.observe(FlowPage, OutcomeSuperseded)
		log.Warn("page response superseded")
	default:
		d.observe(FlowPage, OutcomeFailed)
		log.WithError(err).Error("page fetch failed")
	}
	return v, err
}

func (d *Dashboard) doLoadPage(ctx context.Context, t ticket, index int) (View, error) {
	res, err := d.api.GetChunk(ctx, index)
	if err != nil {
		return d.store.View(), &FetchError{Page: index, Err: err}
	}
	if cur := d.store.View(); !InRange(res.Page, cur.TotalRows) {
		err := fmt.Errorf("echoed page %d outside 0..%d", res.Page, cur.PageCount()-1)
		return cur, &FetchError{Page: index, Err: &backend.DecodeError{Endpoint: backend.EndpointGetChunk, Err: err}}
	}
	return d.store.commitPage(t, func(v *View) {
		v.Rows = res.Rows
		v.Summary = res.Summary
		v.Page = res.Page
	})
}

// Next loads the page after the current one.
func (d *Dashboard) Next(ctx context.Context) (View, error) {
	return d.LoadPage(ctx, d.store.View().Page+1)
}

// Prev loads the page before the current one.
func (d *Dashboard) Prev(ctx context.Context) (View, error) {
	return d.LoadPage(ctx, d.store.View().Page-1)
}
