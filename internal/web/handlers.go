package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/dataset"
	"github.com/KaramelBytes/riskdash/internal/eda"
	"github.com/KaramelBytes/riskdash/internal/export"
	"github.com/KaramelBytes/riskdash/internal/render"
	"github.com/go-chi/chi/v5"
)

// Controls is the enabled state of every trigger on the dashboard page.
type Controls struct {
	UploadDisabled bool `json:"upload_disabled"`
	PrevDisabled   bool `json:"prev_disabled"`
	NextDisabled   bool `json:"next_disabled"`
	PrevPage       int  `json:"prev_page"`
	NextPage       int  `json:"next_page"`
}

// ControlsFor derives the trigger state: a pagination button is disabled at the
// first/last page and while a page request is outstanding; the upload button is
// disabled while an upload is outstanding.
func ControlsFor(v dashboard.View, uploadBusy, pageBusy bool) Controls {
	return Controls{
		UploadDisabled: uploadBusy,
		PrevDisabled:   !v.HasPrev() || pageBusy,
		NextDisabled:   !v.HasNext() || pageBusy,
		PrevPage:       v.Page - 1,
		NextPage:       v.Page + 1,
	}
}

type flowState struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func stateOf(f *dashboard.Flow) flowState {
	st := flowState{Status: f.Status().String()}
	if err := f.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

type indexData struct {
	View      dashboard.View
	Columns   []string
	Cells     [][]string
	PageCount int
	Controls  Controls
	Upload    flowState
	Paging    flowState
	Charts    eda.Charts
}

func (s *Server) indexData() indexData {
	v := s.dash.View()
	cols := v.Columns()
	cells := make([][]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = r.Text(c)
		}
		cells = append(cells, row)
	}
	return indexData{
		View:      v,
		Columns:   cols,
		Cells:     cells,
		PageCount: v.PageCount(),
		Controls:  ControlsFor(v, s.dash.UploadFlow().Busy(), s.dash.PageFlow().Busy()),
		Upload:    stateOf(s.dash.UploadFlow()),
		Paging:    stateOf(s.dash.PageFlow()),
		Charts:    eda.Project(v.Summary),
	}
}

// renderTemplate buffers the page so a template error becomes a clean 500.
func (s *Server) renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("template error")
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, http.StatusOK, "index.html", s.indexData())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	defer http.Redirect(w, r, "/", http.StatusSeeOther)

	if s.maxUpload > 0 {
		// Leave room for the multipart envelope; the CSV itself is checked below.
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+64<<10)
	}
	file, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		_, _ = s.dash.Upload(r.Context(), nil)
		return
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = dataset.ErrTooLarge
		}
		_ = s.dash.RejectUpload(err)
		return
	}
	if hdr.Filename == "" {
		_, _ = s.dash.Upload(r.Context(), nil)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		_ = s.dash.RejectUpload(fmt.Errorf("read upload: %w", err))
		return
	}
	h, err := dataset.FromBytes(hdr.Filename, data, s.maxUpload)
	if err != nil {
		_ = s.dash.RejectUpload(err)
		return
	}
	if v, err := s.dash.Upload(r.Context(), h); err == nil {
		s.commit(v, true)
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(strings.TrimSpace(r.FormValue("page")))
	if err != nil {
		http.Error(w, "page must be an integer", http.StatusBadRequest)
		return
	}
	v, err := s.dash.LoadPage(r.Context(), page)
	switch {
	case err == nil:
		s.commit(v, false)
	case errors.Is(err, dashboard.ErrPageOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, dashboard.ErrInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func chartIndex(r *http.Request, n int) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "i"))
	return i, err == nil && i >= 0 && i < n
}

func (s *Server) handleNumericChart(w http.ResponseWriter, r *http.Request) {
	c := eda.Project(s.dash.View().Summary)
	i, ok := chartIndex(r, len(c.Numeric))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeChart(w, func(buf *bytes.Buffer) error { return render.NumericChart(buf, c.Numeric[i], s.chart) })
}

func (s *Server) handleCategoricalChart(w http.ResponseWriter, r *http.Request) {
	c := eda.Project(s.dash.View().Summary)
	i, ok := chartIndex(r, len(c.Categorical))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeChart(w, func(buf *bytes.Buffer) error { return render.CategoricalChart(buf, c.Categorical[i], s.chart) })
}

func (s *Server) writeChart(w http.ResponseWriter, draw func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		if errors.Is(err, render.ErrNoBars) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.log.WithError(err).Error("chart render failed")
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", render.SVG.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, export.CSVFileName, "text/csv; charset=utf-8", export.WriteCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, export.XLSXFileName,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.WriteXLSX)
}

func (s *Server) writeExport(w http.ResponseWriter, name, contentType string, write func(io.Writer, []backend.Record) error) {
	var buf bytes.Buffer
	if err := write(&buf, s.dash.View().Rows); err != nil {
		if errors.Is(err, export.ErrNoData) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.log.WithError(err).Error("export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = buf.WriteTo(w)
}

const samplePrediction = `{
  "make": "TOYOTA",
  "Model": "HILUX 2.4 GD-6 RB SRX",
  "cubiccapacity": 2393
}`

type predictData struct {
	Input  string
	Result string
	Error  string
}

func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, http.StatusOK, "predict.html", predictData{Input: samplePrediction})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	data := predictData{Input: r.FormValue("features")}
	var features map[string]any
	if err := json.Unmarshal([]byte(data.Input), &features); err != nil {
		data.Error = fmt.Sprintf("features must be a JSON object: %v", err)
		s.renderTemplate(w, http.StatusBadRequest, "predict.html", data)
		return
	}
	res, err := s.api.Predict(r.Context(), features)
	if err != nil {
		data.Error = err.Error()
		s.renderTemplate(w, http.StatusBadGateway, "predict.html", data)
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, res, "", "  "); err != nil {
		data.Result = string(res)
	} else {
		data.Result = pretty.String()
	}
	s.renderTemplate(w, http.StatusOK, "predict.html", data)
}

type edaData struct {
	Info  *backend.DatasetInfo
	Error string
}

func (s *Server) handleEDA(w http.ResponseWriter, r *http.Request) {
	info, err := s.api.DatasetInfo(r.Context())
	data := edaData{Info: info}
	status := http.StatusOK
	if err != nil {
		data.Error = err.Error()
		status = http.StatusBadGateway
	}
	s.renderTemplate(w, status, "eda.html", data)
}

type apiView struct {
	View      dashboard.View `json:"view"`
	PageCount int            `json:"page_count"`
	Controls  Controls       `json:"controls"`
	Upload    flowState      `json:"upload"`
	Paging    flowState      `json:"paging"`
	Charts    eda.Charts     `json:"charts"`
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	d := s.indexData()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(apiView{
		View:      d.View,
		PageCount: d.PageCount,
		Controls:  d.Controls,
		Upload:    d.Upload,
		Paging:    d.Paging,
		Charts:    d.Charts,
	}); err != nil {
		s.log.WithError(err).Debug("write view")
	}
}
