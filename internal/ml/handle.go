package ml

import (
	"context"
	"sync"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

// Handle hands out the process-wide classifier, loading the artifact from
// disk at most once per trained model. Successful loads are memoized;
// failures are not, so a request arriving before the first training run
// fails with ErrModelNotTrained and a later request succeeds without a
// restart. Safe for concurrent use.
type Handle struct {
	path string

	mu     sync.Mutex
	forest *Forest
}

// NewHandle creates a handle for the artifact at path. Nothing is loaded
// until the first Classifier call.
func NewHandle(path string) *Handle {
	return &Handle{path: path}
}

// Classifier implements detection.ClassifierProvider.
func (h *Handle) Classifier(ctx context.Context) (detection.Classifier, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.forest != nil {
		return h.forest, nil
	}
	f, err := Load(h.path)
	if err != nil {
		return nil, err
	}
	h.forest = f
	return f, nil
}

// Replace installs a freshly trained forest, e.g. after a retrain, so
// subsequent requests use it without reloading from disk.
func (h *Handle) Replace(f *Forest) {
	h.mu.Lock()
	h.forest = f
	h.mu.Unlock()
}

// Path returns the artifact location the handle loads from.
func (h *Handle) Path() string { return h.path }
