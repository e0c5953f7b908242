// Package repository combines an inference engine with a history store.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/leafscan/pkg/benchmark"
	"github.com/menta2k/leafscan/pkg/engine"
	"github.com/menta2k/leafscan/pkg/history"
	"github.com/menta2k/leafscan/pkg/types"
)

// Repository runs inferences and optionally records them
type Repository struct {
	engine engine.Engine
	store  history.Store
	log    logrus.FieldLogger
}

// New creates a Repository. A nil store uses a history.MemoryStore and a
// nil logger the standard logrus logger.
func New(e engine.Engine, store history.Store, logger logrus.FieldLogger) *Repository {
	if store == nil {
		store = history.NewMemoryStore()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Repository{
		engine: e,
		store:  store,
		log:    logger.WithField("component", "repository"),
	}
}

// Prepare prepares the engine
func (r *Repository) Prepare(ctx context.Context) error {
	return r.engine.Prepare(ctx)
}

// RunInference classifies data. With saveToHistory the result is also saved
// as a non-favorite entry; a failed save is logged and does not fail the call.
func (r *Repository) RunInference(ctx context.Context, data []byte, saveToHistory bool) (types.InferenceResult, error) {
	result, err := r.engine.RunInference(ctx, data)
	if err != nil {
		return types.InferenceResult{}, err
	}
	if saveToHistory {
		if _, err := r.store.Save(ctx, result, false); err != nil {
			r.log.WithError(err).WithField("summary", result.Summary).Warn("Failed to save result to history")
		}
	}
	return result, nil
}

// BenchmarkMetrics returns the engine's latency snapshot
func (r *Repository) BenchmarkMetrics() benchmark.Benchmark {
	return r.engine.BenchmarkMetrics()
}

// FetchHistory returns saved entries, newest first
func (r *Repository) FetchHistory(ctx context.Context) ([]history.Entry, error) {
	return r.store.FetchEntries(ctx)
}

// SaveHistory saves a result explicitly
func (r *Repository) SaveHistory(ctx context.Context, result types.InferenceResult, isFavorite bool) (history.Entry, error) {
	return r.store.Save(ctx, result, isFavorite)
}

// UpdateFavorite changes an entry's favorite flag
func (r *Repository) UpdateFavorite(ctx context.Context, id uuid.UUID, isFavorite bool) error {
	return r.store.UpdateFavorite(ctx, id, isFavorite)
}
