// Package backendtest runs an in-process stand-in for the analytics backend.
// It serves the same endpoints and JSON shapes so controllers, the CLI and the web
// dashboard can be tested end to end without the real models.
package backendtest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"testing"
	"time"
)

// PageSize mirrors the backend's fixed page length.
const PageSize = 10

// Failure makes the next request to an endpoint answer with Status and {"error": Message}.
type Failure struct {
	Status  int
	Message string
}

type Server struct {
	URL string
	srv *http.Server
	ln  net.Listener

	mu       sync.Mutex
	rows     [][]string
	header   []string
	failures map[string][]Failure
	calls    map[string]int
	// EchoPage maps a requested page to the page reported back. Defaults to identity.
	EchoPage func(requested int) int
	// OmitTotal drops total_rows from upload responses.
	OmitTotal bool
	// Delay is applied to every get_chunk response before it is written.
	Delay func(page int) time.Duration
}

// New starts a fake backend on a tcp4 loopback listener and stops it on cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &Server{
		URL:      "http://" + ln.Addr().String(),
		ln:       ln,
		failures: map[string][]Failure{},
		calls:    map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict_csv", s.handlePredictCSV)
	mux.HandleFunc("/api/get_chunk", s.handleGetChunk)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/eda", s.handleEDA)
	s.srv = &http.Server{Handler: mux}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// Fail queues a failure for the next request to path.
func (s *Server) Fail(path string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], f)
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// RowID is the RecordID the fake assigns to the data row at zero-based index i.
func RowID(i int) string { return fmt.Sprintf("R%03d", i+1) }

// CSV builds a CSV body with n data rows in the insurance column layout.
func CSV(n int) []byte {
	b := []byte("RecordID,PolicyID,Province,TotalPremium\n")
	provinces := []string{"Gauteng", "Western Cape", "KwaZulu-Natal"}
	for i := 0; i < n; i++ {
		b = append(b, fmt.Sprintf("%s,P%d,%s,%d\n", RowID(i), 100+i, provinces[i%len(provinces)], 50+i)...)
	}
	return b
}

func (s *Server) enter(path string) (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[path]++
	q := s.failures[path]
	if len(q) == 0 {
		return Failure{}, false
	}
	s.failures[path] = q[1:]
	return q[0], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePredictCSV(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(r.URL.Path); ok {
		writeJSON(w, f.Status, map[string]any{"error": f.Message})
		return
	}
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No file part"})
		return
	}
	defer file.Close()
	rd := csv.NewReader(file)
	recs, err := rd.ReadAll()
	if err != nil || len(recs) == 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "could not parse csv"})
		return
	}
	s.mu.Lock()
	s.header = recs[0]
	s.rows = recs[1:]
	total := len(s.rows)
	preview := s.pageLocked(0)
	omit := s.OmitTotal
	s.mu.Unlock()

	body := map[string]any{
		"preview":     preview,
		"eda_preview": summaryFor(0),
		"page":        0,
	}
	if !omit {
		body["total_rows"] = total
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(r.URL.Path); ok {
		writeJSON(w, f.Status, map[string]any{"error": f.Message})
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.mu.Lock()
	if s.rows == nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No CSV uploaded"})
		return
	}
	echo := req.Page
	if s.EchoPage != nil {
		echo = s.EchoPage(req.Page)
	}
	rows := s.pageLocked(echo)
	delay := s.Delay
	s.mu.Unlock()
	if delay != nil {
		time.Sleep(delay(req.Page))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":        rows,
		"eda_preview": summaryFor(echo),
		"page":        echo,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(r.URL.Path); ok {
		writeJSON(w, f.Status, map[string]any{"error": f.Message})
		return
	}
	var in map[string]any
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ClaimProbability":  0.12,
		"ClaimSeverity":     1830.5,
		"PremiumPrediction": 412.75,
		"features":          len(in),
	})
}

func (s *Server) handleEDA(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(r.URL.Path); ok {
		writeJSON(w, f.Status, map[string]any{"error": f.Message})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":         1000098,
		"columns":      3,
		"column_names": []string{"RecordID", "PolicyID", "TotalPremium"},
	})
}

// pageLocked renders rows for a page as ordered JSON objects. Callers hold s.mu.
func (s *Server) pageLocked(page int) []json.RawMessage {
	start := page * PageSize
	out := []json.RawMessage{}
	for i := start; i < start+PageSize && i >= 0 && i < len(s.rows); i++ {
		id := ""
		if len(s.rows[i]) > 0 {
			id = s.rows[i][0]
		}
		row := fmt.Sprintf(`{"RecordID":%q,"Row":%d,"ClaimProbability":%g,"PremiumPrediction":null}`,
			id, i, float64(i%100)/100)
		out = append(out, json.RawMessage(row))
	}
	return out
}

// summaryFor returns a deterministic snapshot that differs per page, with keys in a
// deliberately non-alphabetical order.
func summaryFor(page int) json.RawMessage {
	base := float64(page * PageSize)
	return json.RawMessage(fmt.Sprintf(`{
		"numeric_summary": {
			"TotalPremium": {"count": 10, "mean": %g, "std": 2.9, "min": %g, "25%%": %g, "50%%": %g, "75%%": %g, "max": %g},
			"CalculatedPremiumPerTerm": {"count": 0, "min": null, "25%%": null, "50%%": null, "75%%": null, "max": null}
		},
		"top_categories": {
			"Province": {"Western Cape": 4, "Gauteng": 3, "KwaZulu-Natal": 3},
			"Gender": {"Not specified": 9, "Male": 1}
		}
	}`, base+5, base, base+2.25, base+4.5, base+6.75, base+9))
}
