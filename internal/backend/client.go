package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KaramelBytes/riskdash/internal/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is where the analytics backend listens in a local setup.
const DefaultBaseURL = "http://127.0.0.1:5000"

// Endpoint paths served by the analytics backend.
const (
	EndpointPredictCSV = "/api/predict_csv"
	EndpointGetChunk   = "/api/get_chunk"
	EndpointPredict    = "/api/predict"
	EndpointEDA        = "/api/eda"
)

// Request outcomes reported to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeHTTPError   = "http_error"
	OutcomeUnreachable = "unreachable"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 20

// Observer receives one call per backend request.
type Observer interface {
	ObserveRequest(endpoint, outcome string, elapsed time.Duration)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	log        logrus.FieldLogger
	observer   Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver attaches a request observer (metrics).
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient returns a client for the backend at baseURL. A non-positive timeout
// falls back to two minutes; the backend runs models synchronously and can be slow.
func NewClient(baseURL string, httpTimeout time.Duration, opts ...Option) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// UploadCSV posts the CSV bytes as multipart field "file" and returns the first
// page of predictions with its summary.
func (c *Client) UploadCSV(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	if r == nil {
		return nil, errors.New("upload: nil reader")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, EndpointPredictCSV, w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	out, err := decodeUpload(body)
	if err != nil {
		return nil, c.malformed(EndpointPredictCSV, err)
	}
	return out, nil
}

// GetChunk requests the given zero-based page of predictions.
func (c *Client) GetChunk(ctx context.Context, page int) (*ChunkResult, error) {
	payload, err := json.Marshal(map[string]int{"page": page})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, EndpointGetChunk, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	out, err := decodeChunk(body)
	if err != nil {
		return nil, c.malformed(EndpointGetChunk, err)
	}
	return out, nil
}

// Predict sends a single record of feature values. The result is returned verbatim.
func (c *Client) Predict(ctx context.Context, features map[string]any) (json.RawMessage, error) {
	if len(features) == 0 {
		return nil, errors.New("predict: no feature values")
	}
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, EndpointPredict, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, c.malformed(EndpointPredict, errors.New("invalid json"))
	}
	return json.RawMessage(body), nil
}

// DatasetInfo fetches the shape of the dataset the backend was started with.
func (c *Client) DatasetInfo(ctx context.Context) (*DatasetInfo, error) {
	body, err := c.do(ctx, http.MethodGet, EndpointEDA, "", nil)
	if err != nil {
		return nil, err
	}
	var out DatasetInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.malformed(EndpointEDA, err)
	}
	return &out, nil
}

func (c *Client) malformed(endpoint string, err error) error {
	c.log.WithField("endpoint", endpoint).WithError(err).Debug("malformed backend response")
	return &DecodeError{Endpoint: endpoint, Err: err}
}

func (c *Client) observe(endpoint, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, outcome, elapsed)
	}
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	log := c.log.WithFields(logrus.Fields{"endpoint": endpoint, "request_id": reqID})
	log.Debug("backend request")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(endpoint, OutcomeUnreachable, elapsed)
		log.WithError(err).Debug("backend unreachable")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UnreachableError{Host: hostOf(c.baseURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
			RequestID:  extractRequestID(resp),
		}
		if apiErr.RequestID == "" {
			apiErr.RequestID = reqID
		}
		c.observe(endpoint, OutcomeHTTPError, elapsed)
		log.WithField("status", resp.StatusCode).Debug("backend error response")
		return nil, classifyAPIError(apiErr)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(endpoint, OutcomeUnreachable, elapsed)
		return nil, &UnreachableError{Host: hostOf(c.baseURL), Err: fmt.Errorf("read body: %w", err)}
	}
	c.observe(endpoint, OutcomeOK, elapsed)
	log.WithFields(logrus.Fields{"status": resp.StatusCode, "bytes": len(data), "elapsed": elapsed}).Debug("backend response")
	return data, nil
}

// errorMessage pulls a human-readable message from an error body. The backend
// answers with {"error": "..."}; a nested {"error": {"message": ...}} is accepted too.
func errorMessage(body []byte) string {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch v := raw["error"].(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	if msg, ok := raw["message"].(string); ok {
		return msg
	}
	return ""
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func hostOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Host
}
