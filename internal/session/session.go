// Package session persists the dashboard view between CLI invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/utils"
	"github.com/google/uuid"
)

const sessionFileName = "session.json"

// Session is the last view shown, plus where it came from.
type Session struct {
	ID         string         `json:"id,omitempty"`
	Dataset    string         `json:"dataset,omitempty"`
	UploadedAt time.Time      `json:"uploaded_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
	View       dashboard.View `json:"view"`

	// Not serialized: directory holding session.json
	dir string `json:"-"`
}

// Load reads session.json from dir. A missing file yields an empty session.
func Load(dir string) (*Session, error) {
	s := &Session{dir: dir}
	b, err := os.ReadFile(filepath.Join(dir, sessionFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", filepath.Join(dir, sessionFileName), err)
	}
	return s, nil
}

// Empty reports whether no dataset has been uploaded in this session.
func (s *Session) Empty() bool { return !s.View.Loaded }

// Path returns the session file location.
func (s *Session) Path() string { return filepath.Join(s.dir, sessionFileName) }

// Uploaded starts a new session for a freshly uploaded dataset.
func (s *Session) Uploaded(v dashboard.View) {
	now := time.Now().UTC()
	s.ID = uuid.NewString()
	s.Dataset = v.Source
	s.UploadedAt = now
	s.UpdatedAt = now
	s.View = v
}

// Paged records a new page of the current dataset.
func (s *Session) Paged(v dashboard.View) {
	s.UpdatedAt = time.Now().UTC()
	s.View = v
}

// Save writes session.json using atomic write.
func (s *Session) Save() error {
	if s.dir == "" {
		return errors.New("session directory not set")
	}
	if err := utils.EnsureDir(s.dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(s.Path(), data)
}

// Clear removes the persisted session, if any.
func Clear(dir string) error {
	err := os.Remove(filepath.Join(dir, sessionFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
