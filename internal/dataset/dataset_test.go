package dataset_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/riskdash/internal/dataset"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestOpenReadsHeader(t *testing.T) {
	p := writeFile(t, "policies.csv", "\ufeffRecordID, PolicyID,Province\nR1,P1,Gauteng\n")
	h, err := dataset.Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if strings.Join(h.Header, "|") != "RecordID|PolicyID|Province" {
		t.Fatalf("unexpected header: %q", h.Header)
	}
	if h.Delimiter != ',' || len(h.Warnings()) != 0 {
		t.Fatalf("unexpected delimiter %q / warnings %v", h.Delimiter, h.Warnings())
	}
	rc, err := h.Open()
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if !strings.Contains(string(b), "R1,P1,Gauteng") {
		t.Fatalf("handle does not yield file bytes: %q", b)
	}
}

func TestOpenRejectsWrongExtensionAndEmpty(t *testing.T) {
	if _, err := dataset.Open(writeFile(t, "data.txt", "a,b\n")); !errors.Is(err, dataset.ErrNotCSV) {
		t.Fatalf("expected ErrNotCSV, got %v", err)
	}
	if _, err := dataset.Open(writeFile(t, "empty.csv", "\n")); !errors.Is(err, dataset.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := dataset.Open(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromBytesEnforcesLimit(t *testing.T) {
	data := []byte("a,b\n1,2\n")
	if _, err := dataset.FromBytes("x.csv", data, 4); !errors.Is(err, dataset.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	h, err := dataset.FromBytes("x.csv", data, 0)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if h.Size != int64(len(data)) || h.Path != "" {
		t.Fatalf("unexpected handle: %+v", h)
	}
}

func TestInspectCountsRowsAndWarns(t *testing.T) {
	p := writeFile(t, "pipe.csv", "a|b|b\n1|2|3\n4|5\n6|7|8\n")
	h, err := dataset.Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sh, err := dataset.Inspect(h)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if sh.Rows != 3 || sh.Columns != 3 || sh.Delimiter != '|' {
		t.Fatalf("unexpected shape: %+v", sh)
	}
	joined := strings.Join(sh.Warnings, "\n")
	for _, want := range []string{"delimiter", "duplicate column", "1 rows do not have 3 fields"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning containing %q, got:\n%s", want, joined)
		}
	}
}

func TestShapeMarkdown(t *testing.T) {
	p := writeFile(t, "ok.csv", "RecordID,TotalPremium\nR1,10\nR2,20\n")
	h, err := dataset.Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sh, err := dataset.Inspect(h)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	md := sh.Markdown()
	for _, want := range []string{"File: ok.csv\n", "Rows: 2\n", "Columns: 2\n", "1. RecordID\n2. TotalPremium\n"} {
		if !strings.Contains(md, want) {
			t.Fatalf("missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "[WARNINGS]") || strings.Contains(md, "Delimiter") {
		t.Fatalf("unexpected warnings section:\n%s", md)
	}
}
