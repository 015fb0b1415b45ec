package detection

import (
	"fmt"
	"sort"
	"time"
)

// Compression defaults. A macro window absorbs neighbours separated by at
// most DefaultMaxGapSeconds of quiet signal; runs shorter than
// DefaultMinPoints are discarded as blips before merging.
const (
	DefaultMaxGapSeconds = 10
	DefaultMinPoints     = 5
)

// CompressWindows turns raw anomaly windows into macro windows: windows with
// fewer than minPoints points are dropped, the survivors are sorted by
// chronological start, and adjacent windows whose separating gap is at most
// maxGapSeconds are merged. A merged window keeps the earliest start and
// latest end; its NPoints is the sum over the absorbed windows, so it stays
// a density measure rather than an elapsed-span measure.
//
// The input slice is not modified. Compressing an already-compressed slice
// with the same parameters returns it unchanged.
func CompressWindows(windows []Window, maxGapSeconds float64, minPoints int) ([]Window, error) {
	if maxGapSeconds < 0 || minPoints < 1 {
		return nil, fmt.Errorf("%w: max_gap_seconds=%v min_points=%d", ErrInvalidConfiguration, maxGapSeconds, minPoints)
	}

	kept := make([]boundedWindow, 0, len(windows))
	for _, w := range windows {
		if w.NPoints < minPoints {
			continue
		}
		start, err := ParseTimestamp(w.Start)
		if err != nil {
			return nil, fmt.Errorf("window start: %w", err)
		}
		end, err := ParseTimestamp(w.End)
		if err != nil {
			return nil, fmt.Errorf("window end: %w", err)
		}
		kept = append(kept, boundedWindow{Window: w, start: start, end: end})
	}
	if len(kept) == 0 {
		return []Window{}, nil
	}

	// Upstream segmentation emits windows in order already; sorting here
	// keeps the merge correct for callers that hand in their own slices.
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].start.Before(kept[j].start) })

	merged := []boundedWindow{kept[0]}
	for _, next := range kept[1:] {
		cur := &merged[len(merged)-1]
		gap := next.start.Sub(cur.end).Seconds()
		if gap <= maxGapSeconds {
			cur.NPoints += next.NPoints
			if next.end.After(cur.end) {
				cur.End = next.End
				cur.end = next.end
			}
			continue
		}
		merged = append(merged, next)
	}

	out := make([]Window, len(merged))
	for i, m := range merged {
		out[i] = m.Window
	}
	return out, nil
}

// boundedWindow pairs a window with its parsed boundaries so the merge loop
// compares times, not strings.
type boundedWindow struct {
	Window
	start, end time.Time
}
