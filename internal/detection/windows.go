package detection

// BuildWindows segments a flagged trace into maximal contiguous anomaly
// windows in a single left-to-right scan. A false→true transition opens a
// window, a true→false transition closes it at the previous point, and a
// window still open at the end of the trace closes at the final point.
//
// timestamps and flags must be parallel slices in chronological order; the
// Result constructor enforces the length invariant upstream. Every flagged
// point lands in exactly one window, so the NPoints of the returned windows
// always sum to the number of true flags.
func BuildWindows(timestamps []string, flags []bool) []Window {
	windows := []Window{}
	inWindow := false
	start := 0

	for i, flagged := range flags {
		switch {
		case flagged && !inWindow:
			inWindow = true
			start = i
		case !flagged && inWindow:
			inWindow = false
			windows = append(windows, Window{
				Start:   timestamps[start],
				End:     timestamps[i-1],
				NPoints: i - start,
			})
		}
	}
	if inWindow {
		windows = append(windows, Window{
			Start:   timestamps[start],
			End:     timestamps[len(flags)-1],
			NPoints: len(flags) - start,
		})
	}
	return windows
}
