package ml

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gridsight/gridsight-ai/internal/store"
)

// TrainBaseline fits an isolation forest on the normal-scenario rows in the
// store and writes the artifact to path. The returned forest is ready to
// serve; callers typically hand it to Handle.Replace.
func TrainBaseline(ctx context.Context, st store.SignalStore, cfg Config, path string, logger *zap.Logger) (*Forest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rows, err := st.LoadSignals(ctx, store.SignalQuery{Scenario: store.ScenarioNormal})
	if err != nil {
		return nil, fmt.Errorf("load training rows: %w", err)
	}

	data := make([][]float64, len(rows))
	for i, r := range rows {
		data[i] = r.Features()
	}

	forest, err := Train(data, store.FeatureColumns, cfg)
	if err != nil {
		return nil, err
	}
	if err := Save(path, forest); err != nil {
		return nil, err
	}

	logger.Info("baseline model trained",
		zap.Int("rows", len(data)),
		zap.Int("trees", cfg.NumTrees),
		zap.Float64("contamination", cfg.Contamination),
		zap.Float64("offset", forest.Offset()),
		zap.String("artifact", path),
	)
	return forest, nil
}
