package dashboard

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoFile is reported when an upload is triggered without a selected file.
	ErrNoFile = errors.New("no file selected")
	// ErrInFlight is returned when a flow is triggered while its request is outstanding.
	ErrInFlight = errors.New("request already in flight")
	// ErrPageOutOfRange is returned for page indexes outside 0 <= page < page count.
	// It is a client-side guard only; the backend does its own slicing.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrSuperseded is returned when a response arrived after a newer one was shown.
	ErrSuperseded = errors.New("response superseded by a newer request")
)

// UploadError wraps any failure of the upload flow.
type UploadError struct{ Err error }

func (e *UploadError) Error() string { return fmt.Sprintf("upload failed: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// FetchError wraps a failed page fetch.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("loading page %d failed: %v", e.Page+1, e.Err)
}
func (e *FetchError) Unwrap() error { return e.Err }

// Status is the lifecycle of one flow.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Flow tracks one trigger (upload or pagination). At most one request per flow is
// outstanding; its trigger is enabled again as soon as the status leaves Loading.
type Flow struct {
	mu      sync.Mutex
	status  Status
	lastErr error
}

func (f *Flow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusLoading {
		return ErrInFlight
	}
	f.status = StatusLoading
	return nil
}

func (f *Flow) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case err == nil:
		f.status, f.lastErr = StatusSucceeded, nil
	case errors.Is(err, ErrSuperseded):
		f.status, f.lastErr = StatusIdle, nil
	default:
		f.status, f.lastErr = StatusFailed, err
	}
}

// fail records an error for a request that was never sent.
func (f *Flow) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusLoading {
		f.status, f.lastErr = StatusFailed, err
	}
}

// reset returns a settled flow to Idle and forgets its last error. A request in
// flight is left alone; its own outcome settles the flow.
func (f *Flow) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusLoading {
		f.status, f.lastErr = StatusIdle, nil
	}
}

func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Busy reports whether the flow's trigger must be disabled.
func (f *Flow) Busy() bool { return f.Status() == StatusLoading }

// Err returns the error of the last failed attempt, or nil.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
