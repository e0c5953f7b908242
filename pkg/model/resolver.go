package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirResolver looks up <name><ext> in a list of directories
type DirResolver struct {
	Dirs       []string
	Extensions []string
}

// NewDirResolver creates a resolver for the given extensions, e.g. ".onnx"
func NewDirResolver(dirs []string, extensions ...string) *DirResolver {
	return &DirResolver{Dirs: dirs, Extensions: extensions}
}

// Resolve returns the first existing candidate path. A name that already
// points at an existing file is returned as is.
func (r *DirResolver) Resolve(_ context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty model name", ErrNotFound)
	}
	if isFile(name) {
		return name, nil
	}

	for _, dir := range r.Dirs {
		if filepath.Ext(name) != "" {
			if candidate := filepath.Join(dir, name); isFile(candidate) {
				return candidate, nil
			}
		}
		for _, ext := range r.Extensions {
			if candidate := filepath.Join(dir, name+ext); isFile(candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrNotFound, name, strings.Join(r.Dirs, ", "))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
