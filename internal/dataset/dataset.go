// Package dataset validates a CSV file before it is handed to the backend.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotCSV is returned for files without a .csv extension.
	ErrNotCSV = errors.New("not a .csv file")
	// ErrEmpty is returned for files without a header row.
	ErrEmpty = errors.New("csv has no header row")
	// ErrTooLarge is returned when an in-memory upload exceeds the configured cap.
	ErrTooLarge = errors.New("csv exceeds upload size limit")
)

// Handle references a CSV selected for upload. It is held only until the upload
// request completes.
type Handle struct {
	Name      string
	Path      string
	Size      int64
	Header    []string
	Delimiter rune

	data []byte
}

// Open validates the file at path and reads its header.
func Open(path string) (*Handle, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotCSV)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat csv: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	h := &Handle{Name: filepath.Base(path), Path: path, Size: info.Size()}
	if err := h.readHeader(f); err != nil {
		return nil, err
	}
	return h, nil
}

// FromBytes validates an in-memory upload. maxBytes <= 0 disables the size cap.
func FromBytes(name string, data []byte, maxBytes int64) (*Handle, error) {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil, fmt.Errorf("%s: %w", name, ErrNotCSV)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s (%d bytes): %w", name, len(data), ErrTooLarge)
	}
	h := &Handle{Name: filepath.Base(name), Size: int64(len(data)), data: data}
	if err := h.readHeader(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return h, nil
}

// Open returns the bytes to send.
func (h *Handle) Open() (io.ReadCloser, error) {
	if h.data != nil {
		return io.NopCloser(bytes.NewReader(h.data)), nil
	}
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	return f, nil
}

// Warnings lists problems that do not block an upload but likely confuse the backend.
func (h *Handle) Warnings() []string {
	var out []string
	if h.Delimiter != ',' {
		out = append(out, fmt.Sprintf("delimiter looks like %q; the backend parses comma-separated files", h.Delimiter))
	}
	seen := map[string]bool{}
	for _, col := range h.Header {
		if col == "" {
			out = append(out, "header contains an empty column name")
			continue
		}
		if seen[col] {
			out = append(out, fmt.Sprintf("duplicate column %q", col))
		}
		seen[col] = true
	}
	return out
}

func (h *Handle) readHeader(r io.Reader) error {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w", err)
	}
	line = strings.TrimPrefix(line, "\ufeff")
	if strings.TrimSpace(line) == "" {
		return fmt.Errorf("%s: %w", h.Name, ErrEmpty)
	}
	h.Delimiter = sniffDelimiter(line)
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = h.Delimiter
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	h.Header = header
	return nil
}

// sniffDelimiter picks the most frequent candidate separator in the header line.
func sniffDelimiter(line string) rune {
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// Shape is the local view of a CSV: dimensions only, no statistics.
type Shape struct {
	Name      string
	Rows      int
	Columns   int
	Header    []string
	Delimiter rune
	Warnings  []string
}

// Inspect counts the data rows of the handle's CSV.
func Inspect(h *Handle) (*Shape, error) {
	rc, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r := csv.NewReader(rc)
	r.Comma = h.Delimiter
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	sh := &Shape{Name: h.Name, Columns: len(h.Header), Header: h.Header, Delimiter: h.Delimiter, Warnings: h.Warnings()}
	ragged := 0
	first := true
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", sh.Rows+1, err)
		}
		if first {
			first = false
			continue
		}
		sh.Rows++
		if len(rec) != sh.Columns {
			ragged++
		}
	}
	if ragged > 0 {
		sh.Warnings = append(sh.Warnings, fmt.Sprintf("%d rows do not have %d fields", ragged, sh.Columns))
	}
	return sh, nil
}

// Markdown renders the shape as a short plain-text report.
func (s *Shape) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET]\n")
	fmt.Fprintf(&b, "File: %s\n", s.Name)
	fmt.Fprintf(&b, "Rows: %d\n", s.Rows)
	fmt.Fprintf(&b, "Columns: %d\n", s.Columns)
	if s.Delimiter != ',' {
		fmt.Fprintf(&b, "Delimiter: %q\n", s.Delimiter)
	}
	b.WriteString("\n[COLUMNS]\n")
	for i, c := range s.Header {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
