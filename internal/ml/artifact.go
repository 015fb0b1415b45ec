package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

const artifactVersion = 1

// artifact is the on-disk form of a trained forest.
type artifact struct {
	Version       int         `json:"version"`
	TrainedAt     time.Time   `json:"trained_at"`
	Config        Config      `json:"config"`
	SubSampleSize int         `json:"sub_sample_size"`
	Offset        float64     `json:"offset"`
	Features      []string    `json:"features"`
	Trees         []*treeNode `json:"trees"`
}

// Save writes the trained forest to path as JSON, creating parent
// directories as needed. The write goes through a temp file and rename so a
// concurrent loader never sees a half-written artifact.
func Save(path string, f *Forest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	a := artifact{
		Version:       artifactVersion,
		TrainedAt:     time.Now().UTC(),
		Config:        f.cfg,
		SubSampleSize: f.subSampleSize,
		Offset:        f.offset,
		Features:      f.features,
		Trees:         f.trees,
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize model artifact: %w", err)
	}
	f.artifactPath = path
	return nil
}

// Load reads a trained forest from path. A missing file maps to
// detection.ErrModelNotTrained so callers can distinguish "train first"
// from real I/O failures.
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("model artifact %q: %w", path, detection.ErrModelNotTrained)
	}
	if err != nil {
		return nil, fmt.Errorf("read model artifact %q: %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact %q: %w", path, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("model artifact %q: unsupported version %d", path, a.Version)
	}
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("model artifact %q has no trees: %w", path, detection.ErrModelNotTrained)
	}

	return &Forest{
		trees:         a.Trees,
		subSampleSize: a.SubSampleSize,
		offset:        a.Offset,
		features:      a.Features,
		cfg:           a.Config,
		artifactPath:  path,
	}, nil
}
