package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"leaf.JPG":       true,
		"leaf.jpeg":      true,
		"scan.tif":       true,
		"photo.webp":     true,
		"notes.txt":      false,
		"noext":          false,
		"archive.png.gz": false,
	}
	for name, want := range tests {
		if got := IsImageFile(name); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.png", "a.jpg", "readme.md", filepath.Join("sub", "c.webp")} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png"), filepath.Join(sub, "c.webp")}
	if len(files) != len(want) {
		t.Fatalf("Expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}

	if _, err := ListImageFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestReadImageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leaf.png")
	os.WriteFile(path, []byte("png"), 0644)

	data, err := ReadImageFile(path)
	if err != nil || string(data) != "png" {
		t.Errorf("Expected file contents, got %q, %v", data, err)
	}
	if _, err := ReadImageFile(dir); err == nil {
		t.Error("Expected error for directory")
	}
	if _, err := ReadImageFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	os.WriteFile(path, nil, 0644)

	if !FileExists(path) || FileExists(dir) || FileExists(filepath.Join(dir, "nope")) {
		t.Error("Unexpected FileExists result")
	}
	if !DirExists(dir) || DirExists(path) {
		t.Error("Unexpected DirExists result")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d) = %s, want %s", size, got, want)
		}
	}
}
