// Package sequence implements time-indexed sample storage with
// interpolation, subsequence extraction, and interval profiling, as
// specified for the Sequence type. It is the lowest-level component in
// micrograder: Frame, RequestLog, Evaluator, and Scaffold are all built
// on top of it.
package sequence

import "sort"

// Value is the polymorphic payload a Sequence carries. Concrete types in
// this package (Int, Float, Text) and screen.Buffer (in the sibling
// screen package) all satisfy it.
type Value interface {
	Equal(other Value) bool
}

// Numeric is satisfied by Value implementations that support linear
// interpolation.
type Numeric interface {
	Value
	Float() float64
}

// Int is an integer-valued sample, e.g. a digital pin reading.
type Int int64

func (i Int) Equal(other Value) bool { o, ok := other.(Int); return ok && o == i }
func (i Int) Float() float64         { return float64(i) }

// Float is a real-valued sample, e.g. a converted analog reading.
type Float float64

func (f Float) Equal(other Value) bool { o, ok := other.(Float); return ok && o == f }
func (f Float) Float() float64         { return float64(f) }

// Text is a string-valued sample, e.g. a Print event's payload.
type Text string

func (t Text) Equal(other Value) bool { o, ok := other.(Text); return ok && o == t }

// TimedValue is a single sample: a value observed at a point in time.
type TimedValue struct {
	Time  int64
	Value Value
}

// InterpolationType selects how Interpolate repositions or resamples a
// Sequence's points.
type InterpolationType int

const (
	// Start leaves the sequence unchanged.
	Start InterpolationType = iota
	// Mid re-keys every point but the first to the midpoint between it
	// and its predecessor's time.
	Mid
	// End drops the first point and re-keys the rest to the preceding
	// time, modeling "this output held until the next point arrived".
	End
	// Linear resamples at a fixed resolution, linearly interpolating
	// value between consecutive points.
	Linear
)

// ValueFraction is one entry of a profile_interval result: a value and
// the fraction of the profiled interval for which it held.
type ValueFraction struct {
	Value    Value
	Fraction float64
}

// Sequence is an ordered list of (time, value) points with strictly
// increasing times. All read operations are total: they return a zero
// value / nil / empty slice rather than erroring when there is no data.
type Sequence struct {
	points []TimedValue
}

// New returns an empty Sequence.
func New() *Sequence {
	return &Sequence{}
}

// FromPoints builds a Sequence from already-sorted, unique-time points.
// The caller is responsible for the ordering invariant.
func FromPoints(points []TimedValue) *Sequence {
	cp := make([]TimedValue, len(points))
	copy(cp, points)
	return &Sequence{points: cp}
}

// Len reports the number of points.
func (s *Sequence) Len() int { return len(s.points) }

// At returns the i'th point.
func (s *Sequence) At(i int) TimedValue { return s.points[i] }

// Points returns a copy of the underlying point slice.
func (s *Sequence) Points() []TimedValue {
	cp := make([]TimedValue, len(s.points))
	copy(cp, s.points)
	return cp
}

// Append adds a point to the end of the sequence. The caller must ensure
// time is >= the sequence's last time; Append does not re-sort.
func (s *Sequence) Append(t int64, v Value) {
	s.points = append(s.points, TimedValue{Time: t, Value: v})
}

// InsertAt inserts a point, maintaining time order. Used by the scaffold
// to synthesize a lead-in value at a frame's local t=0.
func (s *Sequence) InsertAt(t int64, v Value) {
	idx := sort.Search(len(s.points), func(i int) bool { return s.points[i].Time >= t })
	s.points = append(s.points, TimedValue{})
	copy(s.points[idx+1:], s.points[idx:])
	s.points[idx] = TimedValue{Time: t, Value: v}
}

// Copy returns an independent copy of the sequence.
func (s *Sequence) Copy() *Sequence {
	return FromPoints(s.points)
}

// GetSample returns the value of the latest point with time <= t, or
// (nil, false) if no such point exists.
func (s *Sequence) GetSample(t int64) (Value, bool) {
	idx := s.indexAtOrBefore(t)
	if idx < 0 {
		return nil, false
	}
	return s.points[idx].Value, true
}

// indexAtOrBefore returns the index of the latest point with time <= t,
// or -1 if none exists.
func (s *Sequence) indexAtOrBefore(t int64) int {
	idx := sort.Search(len(s.points), func(i int) bool { return s.points[i].Time > t })
	return idx - 1
}

// GetSamples returns n values, each the latest sample at t0, t0+p,
// t0+2p, and so on. A missing sample at any step yields a nil entry.
func (s *Sequence) GetSamples(t0 int64, n int, period int64) []Value {
	if n <= 0 {
		return nil
	}
	out := make([]Value, n)
	t := t0
	for i := 0; i < n; i++ {
		v, _ := s.GetSample(t)
		out[i] = v
		t += period
	}
	return out
}

// GetSubsequence returns the points in [a, b). When includeLeadIn is
// true and a point exists strictly before a (and no point lands exactly
// on a), that point is included with its time clamped to a.
func (s *Sequence) GetSubsequence(a, b int64, includeLeadIn bool) *Sequence {
	out := New()
	leadIdx := s.indexAtOrBefore(a - 1)
	startIdx := leadIdx + 1
	if includeLeadIn && leadIdx >= 0 {
		if startIdx >= len(s.points) || s.points[startIdx].Time != a {
			out.Append(a, s.points[leadIdx].Value)
		}
	}
	for i := startIdx; i < len(s.points) && s.points[i].Time < b; i++ {
		out.Append(s.points[i].Time, s.points[i].Value)
	}
	return out
}

// Shift returns a copy of the sequence with every time offset by delta.
func (s *Sequence) Shift(delta int64) *Sequence {
	out := New()
	for _, p := range s.points {
		out.Append(p.Time+delta, p.Value)
	}
	return out
}

func valuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// RemoveDuplicates returns a copy with any point dropped whose value
// equals its predecessor's.
func (s *Sequence) RemoveDuplicates() *Sequence {
	out := New()
	if len(s.points) == 0 {
		return out
	}
	out.Append(s.points[0].Time, s.points[0].Value)
	last := s.points[0].Value
	for i := 1; i < len(s.points); i++ {
		if !valuesEqual(last, s.points[i].Value) {
			out.Append(s.points[i].Time, s.points[i].Value)
		}
		last = s.points[i].Value
	}
	return out
}

// ProfileInterval reports the (value, fraction) pairs covering the
// closed-open interval [a, b), sorted by fraction descending. Fractions
// sum to exactly 1 for a non-empty interval. A region before this
// sequence's first point contributes a nil-valued entry.
func (s *Sequence) ProfileInterval(a, b int64) []ValueFraction {
	if b <= a {
		return nil
	}
	total := float64(b - a)

	type segment struct {
		start int64
		val   Value
	}
	var segs []segment
	if v, ok := s.GetSample(a); ok {
		segs = append(segs, segment{start: a, val: v})
	} else {
		segs = append(segs, segment{start: a, val: nil})
	}
	lo := sort.Search(len(s.points), func(i int) bool { return s.points[i].Time > a })
	for i := lo; i < len(s.points) && s.points[i].Time < b; i++ {
		segs = append(segs, segment{start: s.points[i].Time, val: s.points[i].Value})
	}

	var merged []ValueFraction
	for i, seg := range segs {
		end := b
		if i+1 < len(segs) {
			end = segs[i+1].start
		}
		frac := float64(end-seg.start) / total
		if len(merged) > 0 && valuesEqual(merged[len(merged)-1].Value, seg.val) {
			merged[len(merged)-1].Fraction += frac
		} else {
			merged = append(merged, ValueFraction{Value: seg.val, Fraction: frac})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Fraction > merged[j].Fraction })
	return merged
}

// Interpolate returns a new Sequence repositioned/resampled according to
// kind. Linear requires res > 0 and a Numeric-valued sequence; a
// non-Numeric sequence is returned unchanged (Start semantics) rather
// than erroring, keeping the operation total.
func (s *Sequence) Interpolate(kind InterpolationType, res int64) *Sequence {
	if s.Len() == 0 {
		return New()
	}
	switch kind {
	case Start:
		return s.Copy()
	case Mid:
		return s.interpolateMid()
	case End:
		return s.interpolateEnd()
	case Linear:
		if out, ok := s.interpolateLinear(res); ok {
			return out
		}
		return s.Copy()
	default:
		return s.Copy()
	}
}

func (s *Sequence) interpolateMid() *Sequence {
	out := New()
	out.Append(s.points[0].Time, s.points[0].Value)
	for i := 1; i < len(s.points); i++ {
		mid := (s.points[i-1].Time + s.points[i].Time) / 2
		out.Append(mid, s.points[i].Value)
	}
	return out
}

func (s *Sequence) interpolateEnd() *Sequence {
	out := New()
	for i := 1; i < len(s.points); i++ {
		out.Append(s.points[i-1].Time, s.points[i].Value)
	}
	return out
}

func (s *Sequence) interpolateLinear(res int64) (*Sequence, bool) {
	if res <= 0 {
		return nil, false
	}
	numerics := make([]Numeric, len(s.points))
	for i, p := range s.points {
		n, ok := p.Value.(Numeric)
		if !ok {
			return nil, false
		}
		numerics[i] = n
	}

	out := New()
	for i := 1; i < len(s.points); i++ {
		t0, t1 := s.points[i-1].Time, s.points[i].Time
		v0, v1 := numerics[i-1].Float(), numerics[i].Float()
		segLen := t1 - t0
		steps := ceilDiv(segLen, res)
		for k := int64(0); k < steps; k++ {
			t := t0 + k*res
			frac := float64(t-t0) / float64(segLen)
			out.Append(t, Float(v0+frac*(v1-v0)))
		}
	}
	last := s.points[len(s.points)-1]
	out.Append(last.Time, Float(numerics[len(numerics)-1].Float()))
	return out, true
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
