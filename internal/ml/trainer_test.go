package ml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gridsight/gridsight-ai/internal/detection"
	"github.com/gridsight/gridsight-ai/internal/store"
)

func TestTrainBaseline(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	ctx := context.Background()
	if err := store.SeedSyntheticData(ctx, st, 120, 42); err != nil {
		t.Fatalf("SeedSyntheticData: %v", err)
	}

	path := filepath.Join(t.TempDir(), "baseline.json")
	cfg := testConfig()
	forest, err := TrainBaseline(ctx, st, cfg, path, nil)
	if err != nil {
		t.Fatalf("TrainBaseline: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	// A fault-window sample must outscore a steady-state sample.
	scores := forest.Score([][]float64{
		{13.8, 100, 60},
		{13.8, 180, 60},
	})
	if scores[1] <= scores[0] {
		t.Errorf("fault sample score %v not above normal %v", scores[1], scores[0])
	}
}

func TestTrainBaselineNoData(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	_, err = TrainBaseline(context.Background(), st, testConfig(), filepath.Join(t.TempDir(), "m.json"), nil)
	if !errors.Is(err, detection.ErrDataNotFound) {
		t.Fatalf("expected ErrDataNotFound, got %v", err)
	}
}
