package detection

import "testing"

func TestClassifySeverityBoundaries(t *testing.T) {
	cases := []struct {
		mean float64
		want SeverityLevel
	}{
		{0.0, SeverityLow},
		{0.04, SeverityLow},
		{0.0499, SeverityLow},
		{0.05, SeverityModerate},
		{0.10, SeverityModerate},
		{0.1499, SeverityModerate},
		{0.15, SeverityHigh},
		{0.20, SeverityHigh},
		{1.0, SeverityHigh},
	}
	for _, tc := range cases {
		if got := ClassifySeverity(tc.mean); got != tc.want {
			t.Errorf("ClassifySeverity(%v) = %s, want %s", tc.mean, got, tc.want)
		}
	}
}

func TestThresholdsOverride(t *testing.T) {
	tight := Thresholds{Moderate: 0.01, High: 0.02}
	if got := tight.Classify(0.015); got != SeverityModerate {
		t.Errorf("Classify(0.015) = %s, want moderate", got)
	}
	if got := tight.Classify(0.02); got != SeverityHigh {
		t.Errorf("Classify(0.02) = %s, want high", got)
	}
}

func TestAnomalyRate(t *testing.T) {
	if got := AnomalyRate(0, 0); got != 0 {
		t.Errorf("empty run rate = %v, want 0", got)
	}
	if got := AnomalyRate(5, 100); got != 0.05 {
		t.Errorf("rate = %v, want 0.05", got)
	}
}

func TestMeanSeverityIsAbsoluteMean(t *testing.T) {
	r, err := NewResult("normal", "bus_1",
		stamps(t, 4),
		[]float64{-0.2, -0.1, 0.1, 0.0},
		[]bool{false, false, true, false})
	if err != nil {
		t.Fatalf("NewResult: %v", err)
	}
	want := 0.05 // abs((-0.2-0.1+0.1+0.0)/4)
	if got := MeanSeverity(r); got < want-1e-12 || got > want+1e-12 {
		t.Errorf("MeanSeverity = %v, want %v", got, want)
	}
}

func TestNewResultValidation(t *testing.T) {
	_, err := NewResult("normal", "bus_1", stamps(t, 3), []float64{0.1, 0.2}, []bool{true, false, true})
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestNewResultCounts(t *testing.T) {
	r, err := NewResult("overload_trip", "bus_2", stamps(t, 5),
		[]float64{0, 0, 0.3, 0.4, 0},
		[]bool{false, false, true, true, false})
	if err != nil {
		t.Fatalf("NewResult: %v", err)
	}
	if r.NPoints != 5 || r.NAnomalies != 2 {
		t.Errorf("counts = (%d, %d), want (5, 2)", r.NPoints, r.NAnomalies)
	}
}
