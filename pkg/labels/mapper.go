// Package labels maps model class indices to human-readable labels.
package labels

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

//go:embed labels.json
var defaultLabels []byte

// Mapper resolves class indices against a fixed label table.
// The table is loaded once and never mutated.
type Mapper struct {
	labels []string
}

// New creates a Mapper from the embedded default table
func New() *Mapper {
	return NewFromBytes(defaultLabels)
}

// NewFromFile loads a JSON array of strings from path. A missing or
// malformed file yields an empty table; construction never fails.
func NewFromFile(path string) *Mapper {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithField("component", "labels").Warnf("label resource unavailable, using empty table: %v", err)
		return &Mapper{}
	}
	return NewFromBytes(data)
}

// NewFromBytes parses a JSON array of strings, degrading to an empty table
func NewFromBytes(data []byte) *Mapper {
	var decoded []string
	if err := json.Unmarshal(data, &decoded); err != nil {
		logrus.WithField("component", "labels").Warnf("label resource malformed, using empty table: %v", err)
		return &Mapper{}
	}
	return &Mapper{labels: decoded}
}

// NewFromSlice creates a Mapper from an in-memory table
func NewFromSlice(labels []string) *Mapper {
	return &Mapper{labels: append([]string(nil), labels...)}
}

// LabelFor returns the label at index, or "Class_<index>" when out of range
func (m *Mapper) LabelFor(index int) string {
	if index < 0 || index >= len(m.labels) {
		return Placeholder(index)
	}
	return m.labels[index]
}

// Len returns the number of labels in the table
func (m *Mapper) Len() int {
	return len(m.labels)
}

// Labels returns a copy of the table
func (m *Mapper) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Placeholder synthesizes the label used for unknown indices
func Placeholder(index int) string {
	return "Class_" + strconv.Itoa(index)
}

func (m *Mapper) String() string {
	return fmt.Sprintf("labels.Mapper(%d)", len(m.labels))
}
