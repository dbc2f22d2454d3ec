package scaffold

import (
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/requestlog"
)

// DefaultFrameTemplates synthesizes n FrameTemplates with no
// hand-authored conditions to work from: bounds come from n+1 evenly
// spaced Print events in the log, or (when fewer than n+1 Print events
// exist) n+1 evenly spaced points across the log's whole time span.
// Every bound becomes a pure delay-based condition.After(bound, nil),
// so the result needs no predicate registration to round-trip through
// testcase's YAML codec. This is the CLI's `scaffold --default N` path,
// for building a usable test case with no hand-authored templates.
func DefaultFrameTemplates(log *requestlog.RequestLog, n int) []*FrameTemplate {
	if n <= 0 {
		return nil
	}

	var printTimes []int64
	for _, r := range log.Requests() {
		if r.Kind == request.KindEvent && r.DataType == request.PrintEvent {
			printTimes = append(printTimes, r.Timestamp)
		}
	}

	var bounds []int64
	if len(printTimes) >= n+1 {
		bounds = evenlySpacedIndices(printTimes, n)
	} else {
		last, ok := log.LastTimestamp()
		if !ok {
			return nil
		}
		bounds = evenlySpacedWindow(0, last, n)
	}

	out := make([]*FrameTemplate, n)
	for i := 0; i < n; i++ {
		out[i] = &FrameTemplate{
			Start:         condition.After(bounds[i], nil),
			End:           condition.After(bounds[i+1], nil),
			Priority:      0,
			InitToDefault: true,
		}
	}
	return out
}

func evenlySpacedWindow(first, last int64, n int) []int64 {
	bounds := make([]int64, n+1)
	span := last - first
	for i := 0; i <= n; i++ {
		bounds[i] = first + span*int64(i)/int64(n)
	}
	return bounds
}

func evenlySpacedIndices(times []int64, n int) []int64 {
	bounds := make([]int64, n+1)
	lastIdx := len(times) - 1
	for i := 0; i <= n; i++ {
		bounds[i] = times[i*lastIdx/n]
	}
	return bounds
}
