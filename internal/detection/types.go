// Package detection implements the anomaly detection core for grid signals:
// per-point scoring, window segmentation, window compression, severity
// classification and payload assembly.
package detection

import (
	"fmt"
	"strings"
	"time"
)

// Window is a contiguous run of anomalous points, bounded by the timestamps
// of its first and last point. NPoints counts flagged points only; after
// compression a merged window carries the sum of its constituents, not the
// elapsed span.
type Window struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	NPoints int    `json:"n_points"`
}

// Result holds the per-point output of a detection run over one
// scenario/asset trace. Timestamps, Scores and Flags are parallel slices.
type Result struct {
	Scenario   string    `json:"scenario"`
	AssetID    string    `json:"asset_id"`
	Timestamps []string  `json:"timestamps"`
	Scores     []float64 `json:"scores"`
	Flags      []bool    `json:"flags"`
	NPoints    int       `json:"n_points"`
	NAnomalies int       `json:"n_anomalies"`
}

// NewResult assembles a Result from parallel detector outputs, deriving the
// point and anomaly counts. It fails if the slices disagree in length.
func NewResult(scenario, assetID string, timestamps []string, scores []float64, flags []bool) (*Result, error) {
	if len(scores) != len(timestamps) || len(flags) != len(timestamps) {
		return nil, fmt.Errorf("detection result for %s/%s: mismatched lengths (timestamps=%d scores=%d flags=%d)",
			scenario, assetID, len(timestamps), len(scores), len(flags))
	}
	nAnom := 0
	for _, f := range flags {
		if f {
			nAnom++
		}
	}
	return &Result{
		Scenario:   scenario,
		AssetID:    assetID,
		Timestamps: timestamps,
		Scores:     scores,
		Flags:      flags,
		NPoints:    len(timestamps),
		NAnomalies: nAnom,
	}, nil
}

// MeanScore returns the mean of all per-point scores (anomalous and normal
// alike), 0 for an empty trace.
func (r *Result) MeanScore() float64 {
	if len(r.Scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.Scores {
		sum += s
	}
	return sum / float64(len(r.Scores))
}

// timestampLayouts lists the accepted timestamp encodings, most common
// first. SQLite stores text in the first form.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a stored signal timestamp, trying each accepted
// layout. Comparison of window boundaries always happens on the parsed
// values, never on the raw strings.
func ParseTimestamp(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}
