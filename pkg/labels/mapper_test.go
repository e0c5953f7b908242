package labels

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewUsesEmbeddedTable(t *testing.T) {
	m := New()
	if m.Len() != 6 {
		t.Fatalf("Expected 6 embedded labels, got %d", m.Len())
	}
	if got := m.LabelFor(0); got != "healthy" {
		t.Errorf("Expected label 0 to be healthy, got %q", got)
	}
	if got := m.LabelFor(5); got != "unknown" {
		t.Errorf("Expected label 5 to be unknown, got %q", got)
	}
}

func TestLabelForOutOfRange(t *testing.T) {
	m := NewFromSlice([]string{"a", "b", "c", "d", "e"})

	tests := []struct {
		index int
		want  string
	}{
		{0, "a"},
		{4, "e"},
		{5, "Class_5"},
		{999, "Class_999"},
		{-1, "Class_-1"},
	}
	for _, tt := range tests {
		if got := m.LabelFor(tt.index); got != tt.want {
			t.Errorf("LabelFor(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.json")
	if err := os.WriteFile(path, []byte(`["rust","scab"]`), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewFromFile(path)
	if m.Len() != 2 || m.LabelFor(1) != "scab" {
		t.Errorf("Unexpected table %v", m.Labels())
	}
}

func TestNewFromFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()

	missing := NewFromFile(filepath.Join(dir, "missing.json"))
	if missing.Len() != 0 {
		t.Errorf("Expected empty table for missing file, got %d", missing.Len())
	}
	if got := missing.LabelFor(0); got != "Class_0" {
		t.Errorf("Expected placeholder, got %q", got)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"not":"an array"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if m := NewFromFile(bad); m.Len() != 0 {
		t.Errorf("Expected empty table for malformed file, got %d", m.Len())
	}
}

func TestLabelsReturnsCopy(t *testing.T) {
	m := NewFromSlice([]string{"a"})
	got := m.Labels()
	got[0] = "mutated"
	if m.LabelFor(0) != "a" {
		t.Error("Labels() must not expose the internal table")
	}
}
