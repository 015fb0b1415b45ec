package ml

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

func trainedForest(t *testing.T) *Forest {
	t.Helper()
	data := clusterData(300, []float64{13.8, 100, 60}, 1, 9)
	f, err := Train(data, []string{"voltage_kv", "current_a", "frequency_hz"}, testConfig())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return f
}

func TestArtifactRoundTrip(t *testing.T) {
	f := trainedForest(t)
	path := filepath.Join(t.TempDir(), "models", "baseline.json")

	if err := Save(path, f); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	probe := [][]float64{{13.8, 100, 60}, {12.5, 220, 59}}
	want, got := f.Score(probe), loaded.Score(probe)
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("probe %d: loaded forest scores %v, trained scores %v", i, got[i], want[i])
		}
	}
	if loaded.Offset() != f.Offset() {
		t.Errorf("offset changed across save/load: %v vs %v", loaded.Offset(), f.Offset())
	}
	if loaded.ArtifactPath() != path {
		t.Errorf("artifact path = %q, want %q", loaded.ArtifactPath(), path)
	}
	if len(loaded.FeatureNames()) != 3 {
		t.Errorf("feature names lost: %v", loaded.FeatureNames())
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, detection.ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestHandleMemoizesLoad(t *testing.T) {
	f := trainedForest(t)
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := Save(path, f); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h := NewHandle(path)
	const workers = 8
	results := make([]detection.Classifier, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clf, err := h.Classifier(context.Background())
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = clf
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("handle returned different classifier instances")
		}
	}
}

func TestHandleRecoversAfterTraining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	h := NewHandle(path)

	if _, err := h.Classifier(context.Background()); !errors.Is(err, detection.ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained before training, got %v", err)
	}

	f := trainedForest(t)
	if err := Save(path, f); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clf, err := h.Classifier(context.Background())
	if err != nil {
		t.Fatalf("Classifier after training: %v", err)
	}
	if clf == nil {
		t.Fatal("nil classifier")
	}
}

func TestHandleReplace(t *testing.T) {
	h := NewHandle(filepath.Join(t.TempDir(), "never-written.json"))
	f := trainedForest(t)
	h.Replace(f)

	clf, err := h.Classifier(context.Background())
	if err != nil {
		t.Fatalf("Classifier: %v", err)
	}
	if clf != detection.Classifier(f) {
		t.Error("Replace did not install the new forest")
	}
}
