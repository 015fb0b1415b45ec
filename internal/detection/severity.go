package detection

import "math"

// SeverityLevel grades a detection run for ticket triage.
type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "low"
	SeverityModerate SeverityLevel = "moderate"
	SeverityHigh     SeverityLevel = "high"

	// Degenerate grades used by the ticket builder, never emitted by the
	// classifier itself.
	SeverityInfo    SeverityLevel = "info"
	SeverityUnknown SeverityLevel = "unknown"
)

// Default severity boundaries over mean severity. Both bounds are closed
// from below: exactly 0.05 is moderate, exactly 0.15 is high.
const (
	DefaultModerateThreshold = 0.05
	DefaultHighThreshold     = 0.15
)

// Thresholds carries the two severity boundaries so deployments can tighten
// or relax grading without touching the classifier.
type Thresholds struct {
	Moderate float64 `json:"moderate"`
	High     float64 `json:"high"`
}

// DefaultThresholds returns the stock severity boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Moderate: DefaultModerateThreshold, High: DefaultHighThreshold}
}

// Classify grades a mean severity value against the thresholds.
func (t Thresholds) Classify(meanSeverity float64) SeverityLevel {
	switch {
	case meanSeverity < t.Moderate:
		return SeverityLow
	case meanSeverity < t.High:
		return SeverityModerate
	default:
		return SeverityHigh
	}
}

// ClassifySeverity grades a mean severity value with the default thresholds.
func ClassifySeverity(meanSeverity float64) SeverityLevel {
	return DefaultThresholds().Classify(meanSeverity)
}

// MeanSeverity reduces a result's scores to a single magnitude: the absolute
// value of the mean score over every point in the run.
func MeanSeverity(r *Result) float64 {
	return math.Abs(r.MeanScore())
}

// AnomalyRate returns the flagged fraction of a run, 0 for an empty run.
func AnomalyRate(nAnomalies, nPoints int) float64 {
	if nPoints == 0 {
		return 0
	}
	return float64(nAnomalies) / float64(nPoints)
}
