package detection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FeatureRow is one timestamped feature vector pulled from the signal store.
type FeatureRow struct {
	Timestamp string
	Features  []float64
}

// SignalSource loads ordered feature rows for a scenario/asset selection.
// start and end are optional timestamp bounds; empty means unbounded. An
// empty selection yields an error wrapping ErrDataNotFound.
type SignalSource interface {
	LoadFeatureRows(ctx context.Context, scenario, assetID, start, end string) ([]FeatureRow, error)
}

// Classifier scores feature vectors; higher scores are more anomalous.
// Label applies the trained contamination threshold per row.
type Classifier interface {
	Score(rows [][]float64) []float64
	Label(rows [][]float64) []bool
	Identity() string
	FeatureNames() []string
	ArtifactPath() string
}

// ClassifierProvider hands out the process-wide classifier, loading it
// lazily on first use. Failures surface as errors wrapping
// ErrModelNotTrained.
type ClassifierProvider interface {
	Classifier(ctx context.Context) (Classifier, error)
}

// Options tunes one detection run. Nil fields fall back to the defaults,
// so an explicit zero gap (merge adjacent windows only) stays zero.
type Options struct {
	MaxGapSeconds *float64
	MinPoints     *int
	Thresholds    Thresholds
}

func (o Options) maxGap() float64 {
	if o.MaxGapSeconds != nil {
		return *o.MaxGapSeconds
	}
	return DefaultMaxGapSeconds
}

func (o Options) minPoints() int {
	if o.MinPoints != nil {
		return *o.MinPoints
	}
	return DefaultMinPoints
}

func (o Options) thresholds() Thresholds {
	if o.Thresholds == (Thresholds{}) {
		return DefaultThresholds()
	}
	return o.Thresholds
}

// Service chains the full pipeline: load rows, score and flag each point,
// segment raw windows, compress them, grade severity and assemble the
// payload. All dependencies are injected; the service holds no mutable
// state and is safe for concurrent use.
type Service struct {
	source SignalSource
	models ClassifierProvider
	logger *zap.Logger
}

// NewService wires a detection service. logger may be nil.
func NewService(source SignalSource, models ClassifierProvider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, models: models, logger: logger}
}

// Detect runs the pipeline for one scenario/asset selection. Failures are
// total: no partial payload is ever returned, and the sentinel taxonomy
// (ErrDataNotFound, ErrModelNotTrained, ErrInvalidConfiguration,
// ErrMalformedTimestamp) survives wrapping for errors.Is.
func (s *Service) Detect(ctx context.Context, scenario, assetID, start, end string, opts Options) (*Payload, error) {
	began := time.Now()

	rows, err := s.source.LoadFeatureRows(ctx, scenario, assetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load signals %s/%s: %w", scenario, assetID, err)
	}

	clf, err := s.models.Classifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifier for %s/%s: %w", scenario, assetID, err)
	}

	timestamps := make([]string, len(rows))
	features := make([][]float64, len(rows))
	for i, row := range rows {
		timestamps[i] = row.Timestamp
		features[i] = row.Features
	}

	scores := clf.Score(features)
	flags := clf.Label(features)

	result, err := NewResult(scenario, assetID, timestamps, scores, flags)
	if err != nil {
		return nil, err
	}

	raw := BuildWindows(result.Timestamps, result.Flags)
	macro, err := CompressWindows(raw, opts.maxGap(), opts.minPoints())
	if err != nil {
		return nil, fmt.Errorf("compress windows %s/%s: %w", scenario, assetID, err)
	}

	mean := MeanSeverity(result)
	level := opts.thresholds().Classify(mean)
	payload := AssemblePayload(result, macro, mean, level, Meta{
		Features:  clf.FeatureNames(),
		Detector:  clf.Identity(),
		ModelPath: clf.ArtifactPath(),
	})

	s.logger.Info("detection completed",
		zap.String("scenario", scenario),
		zap.String("asset_id", assetID),
		zap.Int("n_points", result.NPoints),
		zap.Int("n_anomalies", result.NAnomalies),
		zap.Int("raw_windows", len(raw)),
		zap.Int("macro_windows", len(macro)),
		zap.String("severity", string(level)),
		zap.Duration("took", time.Since(began)),
	)
	return payload, nil
}
