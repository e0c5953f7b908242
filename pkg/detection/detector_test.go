package detection

import (
	"context"
	"encoding/base64"
	"errors"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/preprocess"
)

// fakeClient records the last query and returns a canned reply
type fakeClient struct {
	reply     string
	err       error
	installed map[string]bool
	lastModel string
	lastImage string
	lastQuery string
}

func (c *fakeClient) SimpleQuery(_ context.Context, model, prompt, imgB64 string) (string, error) {
	c.lastModel, c.lastQuery, c.lastImage = model, prompt, imgB64
	return c.reply, c.err
}

func (c *fakeClient) ModelExists(_ context.Context, model string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.installed[model], nil
}

func testTensor() *preprocess.Tensor {
	pix := make([]byte, 8*8*preprocess.Channels)
	for i := range pix {
		pix[i] = uint8(i)
	}
	return &preprocess.Tensor{Width: 8, Height: 8, Stride: 8 * preprocess.Channels, Order: preprocess.BGRA, Pix: pix}
}

func TestParsePredictions(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		labels []string
		scores []float64
	}{
		{
			name:   "plain",
			raw:    `{"predictions":[{"label":"healthy","score":0.2},{"label":"disease_blight","score":0.7}]}`,
			labels: []string{"disease_blight", "healthy"},
			scores: []float64{0.7, 0.2},
		},
		{
			name:   "code fence and trailing comma",
			raw:    "```json\n{\"predictions\":[{\"label\":\"healthy\",\"score\":0.9},]}\n```",
			labels: []string{"healthy"},
			scores: []float64{0.9},
		},
		{
			name:   "comments and prose",
			raw:    "Sure! Here it is:\n{\n// best guess\n\"predictions\":[{\"label\":\"unknown\",\"score\":1.0}] /* done */\n}",
			labels: []string{"unknown"},
			scores: []float64{1},
		},
		{
			name:   "clamped duplicates and empty labels",
			raw:    `{"predictions":[{"label":"healthy","score":0.3},{"label":" ","score":0.9},{"label":"Healthy","score":1.4},{"label":"stress","score":-2}]}`,
			labels: []string{"Healthy", "stress"},
			scores: []float64{1, 0},
		},
		{
			name:   "single object",
			raw:    `{"label":"disease_mildew","score":0.55}`,
			labels: []string{"disease_mildew"},
			scores: []float64{0.55},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preds, err := ParsePredictions(tt.raw)
			if err != nil {
				t.Fatalf("ParsePredictions failed: %v", err)
			}
			if len(preds) != len(tt.labels) {
				t.Fatalf("Expected %d predictions, got %v", len(tt.labels), preds)
			}
			for i, p := range preds {
				if p.Label != tt.labels[i] || p.Score != tt.scores[i] {
					t.Errorf("preds[%d] = %+v, want %s/%v", i, p, tt.labels[i], tt.scores[i])
				}
			}
		})
	}
}

func TestParsePredictionsErrors(t *testing.T) {
	if _, err := ParsePredictions("I see a leaf."); !errors.Is(err, ErrNoJSON) {
		t.Errorf("Expected ErrNoJSON, got %v", err)
	}
	if _, err := ParsePredictions(`{"predictions": nope}`); err == nil {
		t.Error("Expected parse error")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]string{"healthy", "", "disease_blight"})
	if !strings.Contains(prompt, `"healthy", "disease_blight"`) {
		t.Errorf("Expected quoted labels in prompt, got:\n%s", prompt)
	}
	if !strings.Contains(BuildPrompt(nil), "any short lowercase description") {
		t.Error("Expected open-ended prompt without labels")
	}
}

func TestResolver(t *testing.T) {
	c := &fakeClient{installed: map[string]bool{"llava": true}}
	r := NewResolver(c)

	if got, err := r.Resolve(context.Background(), "llava"); err != nil || got != "llava" {
		t.Errorf("Expected llava, got %s, %v", got, err)
	}
	if _, err := r.Resolve(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty name, got %v", err)
	}

	c.err = errors.New("connection refused")
	if _, err := r.Resolve(context.Background(), "llava"); err == nil || errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected a transport error, got %v", err)
	}
}

func TestVisionModelEvaluate(t *testing.T) {
	c := &fakeClient{reply: `{"predictions":[{"label":"Disease Leaf-Spot","score":0.8},{"label":"rust","score":0.1}]}`}
	loader := NewLoader(c, Config{Labels: []string{"healthy", "disease_leaf_spot"}})

	m, err := loader.Load(context.Background(), "llava")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	out, err := m.Evaluate(context.Background(), testTensor())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	got, ok := out.(model.Classifications)
	if !ok {
		t.Fatalf("Expected Classifications, got %T", out)
	}
	if len(got) != 2 || got[0].Identifier != "1" || got[0].Score != 0.8 || got[1].Identifier != "rust" {
		t.Errorf("Unexpected classifications %+v", got)
	}

	if c.lastModel != "llava" || !strings.Contains(c.lastQuery, `"disease_leaf_spot"`) {
		t.Errorf("Unexpected query to %s: %s", c.lastModel, c.lastQuery)
	}
	raw, err := base64.StdEncoding.DecodeString(c.lastImage)
	if err != nil {
		t.Fatalf("Image is not base64: %v", err)
	}
	img, err := jpeg.Decode(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("Image is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("Expected 8x8 image, got %v", img.Bounds())
	}
}

func TestVisionModelEvaluateErrors(t *testing.T) {
	c := &fakeClient{reply: "no idea"}
	m, _ := NewLoader(c, Config{}).Load(context.Background(), "llava")

	if _, err := m.Evaluate(context.Background(), testTensor()); !errors.Is(err, ErrNoJSON) {
		t.Errorf("Expected ErrNoJSON, got %v", err)
	}

	c.err = errors.New("timeout")
	if _, err := m.Evaluate(context.Background(), testTensor()); err == nil {
		t.Error("Expected client error")
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	got := sanitizeModelJSON("```\n{\"a\": [1, 2,],}\n```")
	if got != `{"a": [1, 2]}` {
		t.Errorf("Unexpected sanitized JSON %q", got)
	}
}
