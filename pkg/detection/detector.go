// Package detection classifies leaf images with a vision language model.
//
// The model is asked for a ranked JSON list of labels. Replies are cleaned
// up (code fences, comments and trailing commas are common), scores are
// clamped to [0,1] and the list is sorted best first. Labels that appear in
// the label table are returned as their index so the engine maps them the
// same way it maps a score array.
package detection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan/pkg/client"
	"github.com/menta2k/leafscan/pkg/model"
	"github.com/menta2k/leafscan/pkg/preprocess"
)

// PromptTemplate is the classification prompt; %s receives the allowed labels
const PromptTemplate = `You are a plant leaf health classifier.

Return JSON only:
{
  "predictions": [
    {"label": "string", "score": 0.0}
  ]
}

HARD RULES
- Use only these labels: %s.
- Scores are probabilities in [0,1], best first, at most 3 entries.
- If the image does not show a leaf, return {"predictions":[{"label":"unknown","score":1.0}]}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// SimpleTestPrompt checks whether the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// BuildPrompt renders PromptTemplate for the given labels
func BuildPrompt(labels []string) string {
	quoted := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			quoted = append(quoted, strconv.Quote(l))
		}
	}
	allowed := strings.Join(quoted, ", ")
	if allowed == "" {
		allowed = "any short lowercase description"
	}
	return fmt.Sprintf(PromptTemplate, allowed)
}

// Resolver checks that a model is installed on the server
type Resolver struct {
	client client.VisionClient
}

var _ model.Resolver = (*Resolver)(nil)

// NewResolver creates a Resolver
func NewResolver(client client.VisionClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve returns name unchanged when the server has it
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty model name", model.ErrNotFound)
	}
	ok, err := r.client.ModelExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s is not available on the server", model.ErrNotFound, name)
	}
	return name, nil
}

// Config holds configuration for the vision backend
type Config struct {
	// Labels restricts the answers and maps them back to class indices
	Labels []string
	// Prompt overrides BuildPrompt(Labels)
	Prompt string
	// InputSize is the image size sent to the model; zero uses the engine default
	InputSize   image.Point
	JPEGQuality int
	// Backend names the server kind in log fields
	Backend string
	Logger  logrus.FieldLogger
}

// Loader creates VisionModels bound to a model name
type Loader struct {
	client client.VisionClient
	config Config
}

var _ model.Loader = (*Loader)(nil)

// NewLoader creates a Loader
func NewLoader(client client.VisionClient, config Config) *Loader {
	if config.Prompt == "" {
		config.Prompt = BuildPrompt(config.Labels)
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = 90
	}
	if config.Backend == "" {
		config.Backend = "ollama"
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &Loader{client: client, config: config}
}

// Load binds the model name; the server does the actual loading on first query
func (l *Loader) Load(_ context.Context, location string) (model.Model, error) {
	index := make(map[string]int, len(l.config.Labels))
	for i, label := range l.config.Labels {
		key := normalizeLabel(label)
		if _, seen := index[key]; !seen && key != "" {
			index[key] = i
		}
	}

	return &VisionModel{
		client:  l.client,
		name:    location,
		prompt:  l.config.Prompt,
		size:    l.config.InputSize,
		quality: l.config.JPEGQuality,
		index:   index,
		log:     l.config.Logger.WithFields(logrus.Fields{"component": "detection", "backend": l.config.Backend, "model": location}),
	}, nil
}

// VisionModel classifies a tensor by asking a vision language model
type VisionModel struct {
	client  client.VisionClient
	name    string
	prompt  string
	size    image.Point
	quality int
	index   map[string]int
	log     logrus.FieldLogger
}

var _ model.Model = (*VisionModel)(nil)

// InputSize returns the configured image size
func (m *VisionModel) InputSize() image.Point { return m.size }

// Evaluate encodes the tensor as JPEG and parses the model's ranking
func (m *VisionModel) Evaluate(ctx context.Context, input *preprocess.Tensor) (model.Output, error) {
	imgB64, err := encodeJPEGBase64(input.Image(), m.quality)
	if err != nil {
		return nil, err
	}

	reply, err := m.client.SimpleQuery(ctx, m.name, m.prompt, imgB64)
	if err != nil {
		return nil, err
	}

	preds, err := ParsePredictions(reply)
	if err != nil {
		m.log.WithError(err).Debugf("Unparseable reply: %q", reply)
		return nil, err
	}
	return m.classifications(preds), nil
}

// TestVision asks the model to describe the image in plain text
func (m *VisionModel) TestVision(ctx context.Context, input *preprocess.Tensor) (string, error) {
	imgB64, err := encodeJPEGBase64(input.Image(), m.quality)
	if err != nil {
		return "", err
	}
	return m.client.SimpleQuery(ctx, m.name, SimpleTestPrompt, imgB64)
}

// Close is a no-op; the server owns the model
func (m *VisionModel) Close() error { return nil }

func (m *VisionModel) classifications(preds []Prediction) model.Classifications {
	out := make(model.Classifications, 0, len(preds))
	for _, p := range preds {
		id := p.Label
		if i, ok := m.index[normalizeLabel(p.Label)]; ok {
			id = strconv.Itoa(i)
		}
		out = append(out, model.Classification{Identifier: id, Score: p.Score})
	}
	return out
}

// Prediction is one entry of a model reply
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type reply struct {
	Predictions []Prediction `json:"predictions"`
	// Some models answer with a single object instead of a list
	Label string   `json:"label"`
	Score *float64 `json:"score"`
}

// ErrNoJSON is returned when a reply contains no JSON object
var ErrNoJSON = errors.New("no json found in model reply")

// ParsePredictions extracts the ranking from a model reply. Empty and
// duplicate labels are dropped, scores are clamped to [0,1] and the result
// is sorted by score, highest first.
func ParsePredictions(raw string) ([]Prediction, error) {
	cleaned := sanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, ErrNoJSON
	}

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("failed to parse model reply: %w", err)
	}
	preds := r.Predictions
	if len(preds) == 0 && r.Label != "" {
		score := 1.0
		if r.Score != nil {
			score = *r.Score
		}
		preds = []Prediction{{Label: r.Label, Score: score}}
	}

	ranked := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		p.Label = strings.TrimSpace(p.Label)
		if p.Label == "" {
			continue
		}
		p.Score = clamp(p.Score, 0, 1)
		ranked = append(ranked, p)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	// A repeated label keeps its best score
	seen := map[string]struct{}{}
	out := ranked[:0]
	for _, p := range ranked {
		key := normalizeLabel(p.Label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var labelSeparators = regexp.MustCompile(`[\s\-]+`)

// normalizeLabel folds case and separators so "Leaf Spot" matches "leaf_spot"
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return labelSeparators.ReplaceAllString(s, "_")
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from a JSON reply
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func encodeJPEGBase64(img image.Image, quality int) (string, error) {
	var buf strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := imaging.Encode(enc, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.String(), nil
}
