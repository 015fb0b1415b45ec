package detection

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeSource struct {
	rows []FeatureRow
	err  error
}

func (f *fakeSource) LoadFeatureRows(ctx context.Context, scenario, assetID, start, end string) ([]FeatureRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// thresholdClassifier flags any row whose first feature exceeds the limit
// and scores it 0.3, everything else -0.1.
type thresholdClassifier struct {
	limit float64
}

func (c *thresholdClassifier) Score(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if r[0] > c.limit {
			out[i] = 0.3
		} else {
			out[i] = -0.1
		}
	}
	return out
}

func (c *thresholdClassifier) Label(rows [][]float64) []bool {
	out := make([]bool, len(rows))
	for i, r := range rows {
		out[i] = r[0] > c.limit
	}
	return out
}

func (c *thresholdClassifier) Identity() string       { return "threshold-test" }
func (c *thresholdClassifier) FeatureNames() []string { return []string{"current_a"} }
func (c *thresholdClassifier) ArtifactPath() string   { return "" }

type fakeProvider struct {
	clf Classifier
	err error
}

func (f *fakeProvider) Classifier(ctx context.Context) (Classifier, error) {
	return f.clf, f.err
}

func traceRows(t *testing.T, values []float64) []FeatureRow {
	t.Helper()
	ts := stamps(t, len(values))
	rows := make([]FeatureRow, len(values))
	for i, v := range values {
		rows[i] = FeatureRow{Timestamp: ts[i], Features: []float64{v}}
	}
	return rows
}

func TestServiceDetect(t *testing.T) {
	// 20 points, a single 6 point burst above the limit.
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100
	}
	for i := 8; i < 14; i++ {
		values[i] = 190
	}
	src := &fakeSource{rows: traceRows(t, values)}
	svc := NewService(src, &fakeProvider{clf: &thresholdClassifier{limit: 150}}, nil)

	p, err := svc.Detect(context.Background(), "overload_trip", "bus_1", "", "", Options{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p.Summary.NPoints != 20 || p.Summary.NAnomalies != 6 {
		t.Errorf("summary counts = (%d, %d), want (20, 6)", p.Summary.NPoints, p.Summary.NAnomalies)
	}
	if p.Summary.AnomalyRate != 0.3 {
		t.Errorf("anomaly rate = %v, want 0.3", p.Summary.AnomalyRate)
	}
	if len(p.Windows) != 1 {
		t.Fatalf("expected one macro window, got %v", p.Windows)
	}
	if p.Windows[0].NPoints != 6 {
		t.Errorf("window NPoints = %d, want 6", p.Windows[0].NPoints)
	}
	// mean score = (14*(-0.1) + 6*0.3) / 20 = 0.02 → low
	if p.Summary.SeverityLevel != SeverityLow {
		t.Errorf("severity = %s, want low", p.Summary.SeverityLevel)
	}
	if p.Meta.Detector != "threshold-test" {
		t.Errorf("meta detector = %q", p.Meta.Detector)
	}
}

func TestServiceDetectEmptyTrace(t *testing.T) {
	src := &fakeSource{rows: nil}
	svc := NewService(src, &fakeProvider{clf: &thresholdClassifier{limit: 150}}, nil)

	p, err := svc.Detect(context.Background(), "normal", "bus_1", "", "", Options{})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p.Summary.NPoints != 0 || p.Summary.NAnomalies != 0 {
		t.Errorf("summary counts = (%d, %d), want zeros", p.Summary.NPoints, p.Summary.NAnomalies)
	}
	if p.Summary.AnomalyRate != 0 || p.Summary.MeanSeverity != 0 {
		t.Errorf("degenerate rate/severity = (%v, %v), want zeros", p.Summary.AnomalyRate, p.Summary.MeanSeverity)
	}
	if p.Summary.SeverityLevel != SeverityLow {
		t.Errorf("severity = %s, want low", p.Summary.SeverityLevel)
	}
	if len(p.Windows) != 0 {
		t.Errorf("expected no windows, got %v", p.Windows)
	}
}

func TestServiceDetectDataNotFound(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("scenario %q: %w", "ghost", ErrDataNotFound)}
	svc := NewService(src, &fakeProvider{clf: &thresholdClassifier{}}, nil)

	_, err := svc.Detect(context.Background(), "ghost", "bus_1", "", "", Options{})
	if !errors.Is(err, ErrDataNotFound) {
		t.Fatalf("expected ErrDataNotFound, got %v", err)
	}
}

func TestServiceDetectModelNotTrained(t *testing.T) {
	src := &fakeSource{rows: traceRows(t, []float64{1, 2, 3})}
	svc := NewService(src, &fakeProvider{err: fmt.Errorf("load artifact: %w", ErrModelNotTrained)}, nil)

	_, err := svc.Detect(context.Background(), "normal", "bus_1", "", "", Options{})
	if !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestServiceDetectInvalidOptions(t *testing.T) {
	src := &fakeSource{rows: traceRows(t, []float64{200, 200, 200, 200, 200, 200})}
	svc := NewService(src, &fakeProvider{clf: &thresholdClassifier{limit: 150}}, nil)

	_, err := svc.Detect(context.Background(), "normal", "bus_1", "", "", Options{MaxGapSeconds: optGap(-2), MinPoints: optPoints(5)})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func optGap(v float64) *float64 { return &v }
func optPoints(v int) *int      { return &v }

func TestServiceDetectExplicitZeroGap(t *testing.T) {
	// Two 6 point bursts separated by one quiet second. The default gap of
	// 10s merges them; an explicit zero gap must keep them apart.
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100
	}
	for i := 2; i < 8; i++ {
		values[i] = 190
	}
	for i := 9; i < 15; i++ {
		values[i] = 190
	}
	src := &fakeSource{rows: traceRows(t, values)}
	svc := NewService(src, &fakeProvider{clf: &thresholdClassifier{limit: 150}}, nil)

	p, err := svc.Detect(context.Background(), "overload_trip", "bus_1", "", "", Options{})
	if err != nil {
		t.Fatalf("Detect with defaults: %v", err)
	}
	if len(p.Windows) != 1 {
		t.Fatalf("default gap windows = %v, want one merged window", p.Windows)
	}

	p, err = svc.Detect(context.Background(), "overload_trip", "bus_1", "", "", Options{MaxGapSeconds: optGap(0)})
	if err != nil {
		t.Fatalf("Detect with zero gap: %v", err)
	}
	if len(p.Windows) != 2 {
		t.Fatalf("zero gap windows = %v, want two separate windows", p.Windows)
	}
	if p.Windows[0].NPoints != 6 || p.Windows[1].NPoints != 6 {
		t.Errorf("window counts = (%d, %d), want (6, 6)",
			p.Windows[0].NPoints, p.Windows[1].NPoints)
	}
}
