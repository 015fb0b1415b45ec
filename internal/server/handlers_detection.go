package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gridsight/gridsight-ai/internal/detection"
	"github.com/gridsight/gridsight-ai/internal/logging"
	"github.com/gridsight/gridsight-ai/internal/metrics"
	"github.com/gridsight/gridsight-ai/internal/ml"
	"github.com/gridsight/gridsight-ai/internal/store"

	"github.com/google/uuid"
)

// DetectRequest selects a trace and optionally overrides the configured
// tuning parameters for one run.
type DetectRequest struct {
	Scenario string `json:"scenario"`
	AssetID  string `json:"asset_id"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`

	MaxGapSeconds     *float64 `json:"max_gap_seconds,omitempty"`
	MinPoints         *int     `json:"min_points,omitempty"`
	ModerateThreshold *float64 `json:"moderate_threshold,omitempty"`
	HighThreshold     *float64 `json:"high_threshold,omitempty"`
}

// detectionOptions builds run options from configuration, then applies the
// request overrides. Overrides pass through as given, so an explicit zero
// gap reaches the compressor as zero.
func (s *Server) detectionOptions(req *DetectRequest) detection.Options {
	gap := s.config.Detection.MaxGapSeconds
	minPoints := s.config.Detection.MinPoints
	opts := detection.Options{
		MaxGapSeconds: &gap,
		MinPoints:     &minPoints,
		Thresholds: detection.Thresholds{
			Moderate: s.config.Detection.ModerateThreshold,
			High:     s.config.Detection.HighThreshold,
		},
	}
	if req.MaxGapSeconds != nil {
		opts.MaxGapSeconds = req.MaxGapSeconds
	}
	if req.MinPoints != nil {
		opts.MinPoints = req.MinPoints
	}
	if req.ModerateThreshold != nil {
		opts.Thresholds.Moderate = *req.ModerateThreshold
	}
	if req.HighThreshold != nil {
		opts.Thresholds.High = *req.HighThreshold
	}
	return opts
}

// handleDetect runs the detection pipeline for one scenario/asset selection
// and returns the detection payload.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Scenario == "" || req.AssetID == "" {
		writeError(w, http.StatusBadRequest, "scenario and asset_id are required")
		return
	}

	correlationID := uuid.NewString()
	ctx := r.Context()
	s.logger.LogDetectionStarted(ctx, correlationID, req.Scenario, req.AssetID)

	started := time.Now()
	payload, err := s.detector.Detect(ctx, req.Scenario, req.AssetID, req.Start, req.End, s.detectionOptions(&req))
	duration := time.Since(started)

	if err != nil {
		s.logger.LogDetectionFailed(ctx, correlationID, req.Scenario, req.AssetID, err)
		metrics.DetectionsTotal.WithLabelValues(req.Scenario, "", "failure").Inc()
		writeError(w, statusFromError(err), err.Error())
		return
	}

	s.logger.LogDetectionCompleted(ctx, correlationID, req.Scenario, req.AssetID, payload.Summary.NAnomalies, duration)
	metrics.DetectionsTotal.WithLabelValues(req.Scenario, string(payload.Summary.SeverityLevel), "success").Inc()
	metrics.DetectionDuration.WithLabelValues(req.Scenario).Observe(duration.Seconds())
	metrics.AnomalyPointsTotal.WithLabelValues(req.Scenario, req.AssetID).Add(float64(payload.Summary.NAnomalies))
	metrics.MacroWindowsEmitted.WithLabelValues(req.Scenario).Observe(float64(len(payload.Windows)))

	s.hub.broadcast("detection.completed", payload)

	writeJSON(w, http.StatusOK, payload)
}

// TrainRequest optionally overrides the configured training parameters.
type TrainRequest struct {
	NumTrees      *int     `json:"num_trees,omitempty"`
	SubSampleSize *int     `json:"sub_sample_size,omitempty"`
	Contamination *float64 `json:"contamination,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

// TrainResponse reports a completed training run.
type TrainResponse struct {
	Detector     string  `json:"detector"`
	ArtifactPath string  `json:"artifact_path"`
	Offset       float64 `json:"offset"`
	DurationMs   int64   `json:"duration_ms"`
}

// handleModelTrain retrains the baseline model on the stored normal-scenario
// rows and swaps it in for subsequent detections.
func (s *Server) handleModelTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TrainRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}

	cfg := ml.DefaultConfig()
	if s.config.Model.NumTrees > 0 {
		cfg.NumTrees = s.config.Model.NumTrees
	}
	if s.config.Model.SubSampleSize > 0 {
		cfg.SubSampleSize = s.config.Model.SubSampleSize
	}
	if s.config.Model.Contamination > 0 {
		cfg.Contamination = s.config.Model.Contamination
	}
	if req.NumTrees != nil {
		cfg.NumTrees = *req.NumTrees
	}
	if req.SubSampleSize != nil {
		cfg.SubSampleSize = *req.SubSampleSize
	}
	if req.Contamination != nil {
		cfg.Contamination = *req.Contamination
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}

	ctx := r.Context()
	started := time.Now()
	forest, err := ml.TrainBaseline(ctx, s.store, cfg, s.config.Model.Path, s.logger.App())
	duration := time.Since(started)

	if err != nil {
		metrics.ModelTrainings.WithLabelValues("failure").Inc()
		s.logger.Log(ctx, logging.NewEvent(logging.EventModelTrainFailed).WithError(err))
		writeError(w, statusFromError(err), err.Error())
		return
	}

	s.models.Replace(forest)
	metrics.ModelTrainings.WithLabelValues("success").Inc()
	metrics.ModelTrainingDuration.Observe(duration.Seconds())

	rows, _ := s.store.CountSignals(ctx, store.SignalQuery{Scenario: store.ScenarioNormal})
	s.logger.LogModelTrained(ctx, rows, s.config.Model.Path, duration)
	s.hub.broadcast("model.trained", map[string]any{
		"detector": forest.Identity(),
		"artifact": s.config.Model.Path,
	})

	writeJSON(w, http.StatusOK, TrainResponse{
		Detector:     forest.Identity(),
		ArtifactPath: s.config.Model.Path,
		Offset:       forest.Offset(),
		DurationMs:   duration.Milliseconds(),
	})
}
