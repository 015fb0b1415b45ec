package detection

import (
	"testing"
	"time"
)

// stamps returns n consecutive 1 Hz timestamps starting at a fixed origin.
func stamps(t *testing.T, n int) []string {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Second).Format("2006-01-02 15:04:05")
	}
	return out
}

// stampAt returns the timestamp offset seconds after the same origin.
func stampAt(t *testing.T, offset int) string {
	t.Helper()
	return stamps(t, offset+1)[offset]
}

func TestBuildWindowsEmpty(t *testing.T) {
	got := BuildWindows(nil, nil)
	if len(got) != 0 {
		t.Fatalf("expected no windows, got %v", got)
	}
}

func TestBuildWindowsNoFlags(t *testing.T) {
	ts := stamps(t, 10)
	flags := make([]bool, 10)
	if got := BuildWindows(ts, flags); len(got) != 0 {
		t.Fatalf("expected no windows, got %v", got)
	}
}

func TestBuildWindowsAllFlagged(t *testing.T) {
	ts := stamps(t, 5)
	flags := []bool{true, true, true, true, true}
	got := BuildWindows(ts, flags)
	if len(got) != 1 {
		t.Fatalf("expected single window, got %v", got)
	}
	w := got[0]
	if w.Start != ts[0] || w.End != ts[4] || w.NPoints != 5 {
		t.Fatalf("unexpected window %+v", w)
	}
}

func TestBuildWindowsSinglePointRuns(t *testing.T) {
	ts := stamps(t, 5)
	flags := []bool{true, false, true, false, true}
	got := BuildWindows(ts, flags)
	if len(got) != 3 {
		t.Fatalf("expected 3 windows, got %v", got)
	}
	for i, w := range got {
		if w.NPoints != 1 {
			t.Errorf("window %d: NPoints = %d, want 1", i, w.NPoints)
		}
		if w.Start != w.End {
			t.Errorf("window %d: single-point window must start and end at the same stamp: %+v", i, w)
		}
	}
}

func TestBuildWindowsOpenAtEnd(t *testing.T) {
	ts := stamps(t, 6)
	flags := []bool{false, false, false, true, true, true}
	got := BuildWindows(ts, flags)
	if len(got) != 1 {
		t.Fatalf("expected single window, got %v", got)
	}
	if got[0].Start != ts[3] || got[0].End != ts[5] || got[0].NPoints != 3 {
		t.Fatalf("unexpected window %+v", got[0])
	}
}

func TestBuildWindowsClosesAtPreviousPoint(t *testing.T) {
	ts := stamps(t, 6)
	flags := []bool{false, true, true, false, false, false}
	got := BuildWindows(ts, flags)
	if len(got) != 1 {
		t.Fatalf("expected single window, got %v", got)
	}
	if got[0].Start != ts[1] || got[0].End != ts[2] || got[0].NPoints != 2 {
		t.Fatalf("window must close at the last flagged point, got %+v", got[0])
	}
}

// Every flagged point belongs to exactly one window: summed NPoints must
// equal the number of true flags for arbitrary flag patterns.
func TestBuildWindowsConservation(t *testing.T) {
	patterns := [][]bool{
		{},
		{true},
		{false},
		{true, true, false, true, false, false, true, true, true, false},
		{false, true, false, true, true, false, false, true, false, true},
		{true, false, false, false, true, true, false, true, true, true},
	}
	for _, flags := range patterns {
		ts := stamps(t, len(flags))
		want := 0
		for _, f := range flags {
			if f {
				want++
			}
		}
		got := 0
		for _, w := range BuildWindows(ts, flags) {
			got += w.NPoints
		}
		if got != want {
			t.Errorf("flags %v: summed NPoints = %d, want %d", flags, got, want)
		}
	}
}
