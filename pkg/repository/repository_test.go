package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/menta2k/leafscan/pkg/engine"
	"github.com/menta2k/leafscan/pkg/history"
	"github.com/menta2k/leafscan/pkg/types"
)

// failingStore rejects every save
type failingStore struct {
	history.Store
	saves int
}

func (s *failingStore) Save(context.Context, types.InferenceResult, bool) (history.Entry, error) {
	s.saves++
	return history.Entry{}, errors.New("disk full")
}

func preparedMock(t *testing.T) *engine.MockEngine {
	t.Helper()
	m := engine.NewMockEngine()
	m.PrepareDelay = 0
	if err := m.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRunInferenceSavesToHistory(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	repo := New(preparedMock(t), store, nil)

	if _, err := repo.RunInference(ctx, []byte("leaf-1"), false); err != nil {
		t.Fatalf("RunInference failed: %v", err)
	}
	if store.Len() != 0 {
		t.Error("Expected nothing saved without saveToHistory")
	}

	res, err := repo.RunInference(ctx, []byte("leaf-2"), true)
	if err != nil {
		t.Fatalf("RunInference failed: %v", err)
	}

	entries, err := repo.FetchHistory(ctx)
	if err != nil {
		t.Fatalf("FetchHistory failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].Result.Equal(res) || entries[0].IsFavorite {
		t.Errorf("Unexpected history %+v", entries)
	}

	if got := repo.BenchmarkMetrics().SampleCount(); got != 2 {
		t.Errorf("Expected 2 benchmark samples, got %d", got)
	}
}

func TestRunInferenceSwallowsSaveFailure(t *testing.T) {
	store := &failingStore{}
	repo := New(preparedMock(t), store, nil)

	res, err := repo.RunInference(context.Background(), []byte("leaf-2"), true)
	if err != nil {
		t.Fatalf("Expected save failure to be swallowed, got %v", err)
	}
	if res.Summary != "healthy" {
		t.Errorf("Expected healthy, got %s", res.Summary)
	}
	if store.saves != 1 {
		t.Errorf("Expected one save attempt, got %d", store.saves)
	}

	// Explicit saves still report the failure
	if _, err := repo.SaveHistory(context.Background(), res, true); err == nil {
		t.Error("Expected SaveHistory to return the store error")
	}
}

func TestRunInferencePropagatesEngineErrors(t *testing.T) {
	store := history.NewMemoryStore()
	repo := New(engine.NewMockEngine(), store, nil)

	if _, err := repo.RunInference(context.Background(), []byte("x"), true); !errors.Is(err, engine.ErrModelNotPrepared) {
		t.Errorf("Expected ErrModelNotPrepared, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("Failed inference must not be saved")
	}
}

func TestUpdateFavorite(t *testing.T) {
	ctx := context.Background()
	repo := New(preparedMock(t), nil, nil)

	entry, err := repo.SaveHistory(ctx, types.NewInferenceResult("healthy", 0.8, nil, nil), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateFavorite(ctx, entry.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateFavorite(ctx, uuid.New(), true); err != nil {
		t.Errorf("Unknown id should be ignored, got %v", err)
	}

	entries, _ := repo.FetchHistory(ctx)
	if len(entries) != 1 || !entries[0].IsFavorite {
		t.Errorf("Expected favorite entry, got %+v", entries)
	}
}
