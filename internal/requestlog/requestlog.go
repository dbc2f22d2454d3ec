// Package requestlog implements RequestLog: the append-only record of
// every request a session observed, plus the two derived views the
// Evaluator and Scaffold need from it — per-channel Sequences, and
// Condition satisfaction times computed by a fresh, side-effect-free
// replay.
package requestlog

import (
	"sort"

	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/sequence"
)

// RequestLog is an append-only, ordered list of requests.
type RequestLog struct {
	requests []*request.Request
}

// New returns an empty RequestLog.
func New() *RequestLog { return &RequestLog{} }

// Append adds r to the end of the log. The caller is responsible for
// wire-arrival order (which the session driver guarantees is also
// timestamp order).
func (l *RequestLog) Append(r *request.Request) { l.requests = append(l.requests, r) }

// Requests returns a copy of the logged requests in arrival order.
func (l *RequestLog) Requests() []*request.Request {
	cp := make([]*request.Request, len(l.requests))
	copy(cp, l.requests)
	return cp
}

// Len reports the number of logged requests.
func (l *RequestLog) Len() int { return len(l.requests) }

// LastTimestamp returns the final request's timestamp, used by the
// scaffold to resolve a FrameTemplate's open-ended window.
func (l *RequestLog) LastTimestamp() (int64, bool) {
	if len(l.requests) == 0 {
		return 0, false
	}
	return l.requests[len(l.requests)-1].Timestamp, true
}

// FilterLiveQueries drops Input requests with no recorded values (live
// queries the device asked the host to answer in real time), keeping
// everything else. Used by the scaffold before extracting sequences, so
// a host's own synthesized answers don't get mistaken for recordings.
func (l *RequestLog) FilterLiveQueries() *RequestLog {
	out := New()
	for _, r := range l.requests {
		if r.Kind == request.KindInput && r.Values == nil {
			continue
		}
		out.Append(r)
	}
	return out
}

// ExtractSequences builds a Sequence per (data type, channel) key from
// every recorded Input-with-values and Output request in the log,
// expanding batched requests into one point per (sample, channel).
func (l *RequestLog) ExtractSequences() map[frame.Key]*sequence.Sequence {
	builders := map[frame.Key][]sequence.TimedValue{}
	for _, r := range l.requests {
		switch r.Kind {
		case request.KindInput:
			if r.Values == nil {
				continue
			}
			appendBatchPoints(builders, r)
		case request.KindOutput:
			appendBatchPoints(builders, r)
		}
	}

	out := map[frame.Key]*sequence.Sequence{}
	for key, pts := range builders {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time < pts[j].Time })
		out[key] = sequence.FromPoints(pts)
	}
	return out
}

func appendBatchPoints(builders map[frame.Key][]sequence.TimedValue, r *request.Request) {
	numChannels := len(r.Channels)
	if numChannels == 0 {
		return
	}
	num := r.Batch.Num
	if num <= 0 {
		num = 1
	}
	period := r.Batch.Period

	for s := 0; s < num; s++ {
		t := r.Timestamp + int64(s)*period
		for ci, ch := range r.Channels {
			idx := s*numChannels + ci
			if idx >= len(r.Values) {
				continue
			}
			key := frame.Key{DataType: r.DataType, Channel: ch}
			builders[key] = append(builders[key], sequence.TimedValue{Time: t, Value: r.Values[idx]})
		}
	}
}

// SatisfiedTimes replays conditions against a fresh, shared-structure
// clone of the forest (so conditions referenced by more than one frame
// stay shared within the clone) and reports each root's satisfaction
// time, or nil if it never fired. The clone is discarded afterward; the
// caller's original conditions are never mutated by this call.
func (l *RequestLog) SatisfiedTimes(conditions []*condition.Condition) []*int64 {
	clones := condition.CloneForest(conditions)
	for _, r := range l.requests {
		for _, c := range clones {
			c.Update(r)
		}
	}
	out := make([]*int64, len(clones))
	for i, c := range clones {
		if t, ok := c.SatisfiedAt(); ok {
			v := t
			out[i] = &v
		}
	}
	return out
}
