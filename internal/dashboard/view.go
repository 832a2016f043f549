package dashboard

import (
	"sync"

	"github.com/KaramelBytes/riskdash/internal/backend"
)

// PageSize is the fixed number of prediction rows per page.
const PageSize = 10

// PageCount returns ceil(total / PageSize).
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// HasPrev reports whether a "Previous" control is enabled on page.
func HasPrev(page int) bool { return page > 0 }

// HasNext reports whether a "Next" control is enabled on page.
func HasNext(page, total int) bool { return (page+1)*PageSize < total }

// InRange reports whether 0 <= page < PageCount(total).
func InRange(page, total int) bool { return page >= 0 && page < PageCount(total) }

// View is everything a presentation surface renders.
type View struct {
	Rows      []backend.Record `json:"rows"`
	Summary   backend.Summary  `json:"summary"`
	Page      int              `json:"page"`
	TotalRows int              `json:"total_rows"`
	Loaded    bool             `json:"loaded"`
	Source    string           `json:"source,omitempty"`
}

func (v View) PageCount() int { return PageCount(v.TotalRows) }
func (v View) HasPrev() bool  { return v.Loaded && HasPrev(v.Page) }
func (v View) HasNext() bool  { return v.Loaded && HasNext(v.Page, v.TotalRows) }

// Columns returns the header of the displayed table: the keys of the first row.
func (v View) Columns() []string {
	if len(v.Rows) == 0 {
		return nil
	}
	return v.Rows[0].Columns
}

// Store owns the view. Every request takes a ticket; a response is committed only
// when nothing newer has been committed for the same flow, and a page response is
// dropped once a newer upload has replaced the dataset it was fetched for.
type Store struct {
	mu            sync.RWMutex
	view          View
	issued        uint64
	generation    uint64
	uploadApplied uint64
	pageApplied   uint64
}

// NewStore returns a store seeded with initial (e.g. a restored session).
func NewStore(initial View) *Store {
	return &Store{view: initial}
}

// View returns a copy of the current view. Slices are shared but never mutated in
// place; commits replace them wholesale.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

type ticket struct {
	seq        uint64
	generation uint64
}

func (s *Store) issue() ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return ticket{seq: s.issued, generation: s.generation}
}

func (s *Store) commitUpload(t ticket, v View) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// An older upload never replaces a newer one, even though a Dashboard only
	// runs one upload at a time.
	if t.seq < s.uploadApplied {
		return s.view, ErrSuperseded
	}
	s.uploadApplied = t.seq
	s.generation++
	s.view = v
	return s.view, nil
}

func (s *Store) commitPage(t ticket, apply func(*View)) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.generation != s.generation || t.seq < s.pageApplied {
		return s.view, ErrSuperseded
	}
	s.pageApplied = t.seq
	next := s.view
	apply(&next)
	s.view = next
	return s.view, nil
}
