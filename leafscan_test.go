package leafscan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/leafscan/pkg/engine"
	"github.com/menta2k/leafscan/pkg/history"
)

// createTestImage creates a PNG-encoded test image
func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newMockClassifier(t *testing.T) *Classifier {
	t.Helper()
	opts := DefaultOptions()
	opts.Backend = BackendMock
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestClassifierMock(t *testing.T) {
	ctx := context.Background()
	c := newMockClassifier(t)

	if _, err := c.ClassifyBytes(ctx, []byte("leaf-2"), false); !errors.Is(err, engine.ErrModelNotPrepared) {
		t.Fatalf("Expected ErrModelNotPrepared before Prepare, got %v", err)
	}
	if err := c.Prepare(ctx); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	res, err := c.ClassifyBytes(ctx, []byte("leaf-2"), true)
	if err != nil {
		t.Fatalf("ClassifyBytes failed: %v", err)
	}
	if res.Summary != "healthy" || res.Confidence != 0.8 || res.TimingMilliseconds == nil {
		t.Errorf("Unexpected result %+v", res)
	}
	if d := c.Detail(res); d.Name != "Healthy leaf" {
		t.Errorf("Unexpected detail %+v", d)
	}

	entries, err := c.History(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Expected one history entry, got %v, %v", entries, err)
	}
	if c.Benchmark().SampleCount() != 1 {
		t.Errorf("Expected one benchmark sample, got %d", c.Benchmark().SampleCount())
	}
}

func TestClassifyFile(t *testing.T) {
	ctx := context.Background()
	c := newMockClassifier(t)
	if err := c.Prepare(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "leaf.png")
	data := createTestImage(t, 40, 30)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := c.ClassifyFile(ctx, path, false)
	if err != nil {
		t.Fatalf("ClassifyFile failed: %v", err)
	}
	fromBytes, _ := c.ClassifyBytes(ctx, data, false)
	if fromFile.Summary != fromBytes.Summary {
		t.Errorf("Expected same label from file and bytes, got %s and %s", fromFile.Summary, fromBytes.Summary)
	}

	if _, err := c.ClassifyFile(ctx, filepath.Join(t.TempDir(), "missing.png"), false); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewWithCustomHistory(t *testing.T) {
	store := history.NewMemoryStore()
	opts := DefaultOptions()
	opts.Backend = BackendMock
	opts.History = store

	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	c.Prepare(ctx)
	c.ClassifyBytes(ctx, []byte("a"), true)

	if store.Len() != 1 {
		t.Errorf("Expected result in the supplied store, got %d entries", store.Len())
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"unknown backend", func(o *Options) { o.Backend = "coreml" }},
		{"bad filter", func(o *Options) { o.Filter = "sinc" }},
		{"bad channel order", func(o *Options) { o.ChannelOrder = "argb" }},
		{"bad ollama url", func(o *Options) { o.Backend = BackendOllama; o.OllamaURL = "not a url" }},
		{"bad llamacpp url", func(o *Options) { o.Backend = BackendLlamaCpp; o.LlamaCppURL = "localhost:8080" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			if _, err := New(opts); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestONNXModelNotFound(t *testing.T) {
	opts := DefaultOptions()
	opts.Model = "missing"
	opts.ModelDirs = []string{t.TempDir()}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Prepare(context.Background()); !errors.Is(err, engine.ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
}

func TestCustomLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	os.WriteFile(path, []byte(`["a","b"]`), 0644)

	opts := DefaultOptions()
	opts.LabelsPath = path
	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.Labels().Len() != 2 {
		t.Errorf("Expected 2 labels, got %d", c.Labels().Len())
	}
}
