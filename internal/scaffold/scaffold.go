// Package scaffold turns a recorded RequestLog into a reusable
// TestCase, by filtering live queries, extracting per-channel
// sequences, resolving each frame template's time window, and building
// that frame's replayed inputs and the EvalPoints its outputs produce.
// check_interval's string-eval'd expressions ("0.2*T", "0.8*T") are
// replaced by the explicit-interface-callable pattern this module uses
// throughout (condition.Predicate/evaluator.CheckFunc follow the same
// shape; IntervalFunc here does too).
package scaffold

import (
	"fmt"

	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/evaluator"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/handler"
	"github.com/kwashburn/micrograder/internal/preferences"
	"github.com/kwashburn/micrograder/internal/requestlog"
	"github.com/kwashburn/micrograder/internal/sequence"
	"github.com/kwashburn/micrograder/internal/testcase"
	"github.com/kwashburn/micrograder/internal/timeunit"
)

// IntervalFunc computes one endpoint of an EvalPointTemplate's check
// interval from T, the point's local run-length. Kept as an interface
// (rather than an eval'd string, as in the source) so the callable
// survives into descriptive output, matching this module's treatment
// of every other function-valued field.
type IntervalFunc interface {
	Eval(t int64) int64
	Description() string
}

// Fraction is an IntervalFunc computing f*T, truncated toward zero.
type Fraction float64

func (f Fraction) Eval(t int64) int64  { return int64(float64(f) * float64(t)) }
func (f Fraction) Description() string { return fmt.Sprintf("%g*T", float64(f)) }

// EvalPointTemplate carries everything Scaffold needs to build one
// EvalPoint per output point it finds: where the check interval sits
// relative to the point's observed time, how to compare, and what
// fraction of the interval must pass.
type EvalPointTemplate struct {
	IntervalStart IntervalFunc
	IntervalEnd   IntervalFunc
	Check         evaluator.CheckFunc
	Portion       float64
}

// DefaultEvalPointTemplate mirrors DEFAULT_CHECK_INTERVAL = ("0.2*T", "0.8*T").
func DefaultEvalPointTemplate() EvalPointTemplate {
	return EvalPointTemplate{
		IntervalStart: Fraction(0.2),
		IntervalEnd:   Fraction(0.8),
		Check:         evaluator.Equals{},
		Portion:       1.0,
	}
}

// FrameTemplate describes one Frame to synthesize from a log: the
// start/end conditions that bound it (End nil means "the rest of the
// log"), its scheduling priority, and whether to prefer the
// per-channel default over the log's lead-in value at local t=0.
type FrameTemplate struct {
	Start         *condition.Condition
	End           *condition.Condition
	Priority      int
	InitToDefault bool
}

// Scaffold holds the templates and preference tables generate_test_case
// consults while synthesizing a TestCase from a log.
type Scaffold struct {
	FrameTemplates []*FrameTemplate
	Interpolations *preferences.Preferences[sequence.InterpolationType]
	DefaultValues  *preferences.Preferences[sequence.Value]
	PointTemplates *preferences.Preferences[EvalPointTemplate]
	Aggregators    *preferences.Preferences[evaluator.Aggregator]
}

// New builds a Scaffold with the source's defaults: Mid interpolation,
// the default EvalPointTemplate, and AllPass aggregation, all as the
// universal (empty-key) fallback.
func New(templates []*FrameTemplate) *Scaffold {
	interpolations := preferences.New[sequence.InterpolationType]()
	interpolations.Set(preferences.NewKey(), sequence.Mid)

	pointTemplates := preferences.New[EvalPointTemplate]()
	pointTemplates.Set(preferences.NewKey(), DefaultEvalPointTemplate())

	aggregators := preferences.New[evaluator.Aggregator]()
	aggregators.Set(preferences.NewKey(), evaluator.AllPass{})

	return &Scaffold{
		FrameTemplates: templates,
		Interpolations: interpolations,
		DefaultValues:  preferences.New[sequence.Value](),
		PointTemplates: pointTemplates,
		Aggregators:    aggregators,
	}
}

// GenerateTestCase filters live queries, extracts per-channel sequences
// once, resolves each template's (start, end) window, builds that
// frame's replayed inputs and the EvalPoints its outputs produce, then
// assembles the handler and evaluator that share the frames'
// conditions by identity.
func (s *Scaffold) GenerateTestCase(log *requestlog.RequestLog) *testcase.TestCase {
	filtered := log.FilterLiveQueries()
	sequences := filtered.ExtractSequences()
	lastTS, haveLast := filtered.LastTimestamp()

	var frames []*frame.Frame
	var points []evaluator.EvalPoint

	for _, ft := range s.FrameTemplates {
		startTime, endTime, ok := s.resolveBounds(filtered, ft, lastTS, haveLast)
		if !ok {
			continue
		}

		inputs := s.generateInputs(sequences, startTime, endTime, ft.InitToDefault)
		f := frame.New(ft.Start, ft.End, inputs, ft.Priority)
		frames = append(frames, f)

		conditionID := len(frames) - 1
		for _, p := range s.generateEvalPoints(sequences, startTime, endTime) {
			p.ConditionID = conditionID
			points = append(points, p)
		}
	}

	endConditions := make([]*condition.Condition, len(frames))
	startConditions := make([]*condition.Condition, len(frames))
	for i, f := range frames {
		endConditions[i] = f.End
		startConditions[i] = f.Start
	}

	h := handler.New(condition.And(endConditions...), frames, true, s.DefaultValues)
	e := evaluator.New(startConditions, points, s.Aggregators)
	return testcase.New(h, e)
}

// resolveBounds implements step 3: an absent End means "end of log";
// a end firing at or before start (or not firing at all) skips the
// template. When End was auto-supplied, it's synthesized here as
// After(end-start, [start]) and written back onto the template so the
// same *Condition object is shared by the frame and the handler's
// overall end condition; it wraps ft.Start, the object the evaluator
// receives as this frame's start condition.
func (s *Scaffold) resolveBounds(log *requestlog.RequestLog, ft *FrameTemplate, lastTS int64, haveLast bool) (int64, int64, bool) {
	times := log.SatisfiedTimes([]*condition.Condition{ft.Start})
	if len(times) == 0 || times[0] == nil {
		return 0, 0, false
	}
	startTime := *times[0]

	var endTime int64
	if ft.End == nil {
		if !haveLast {
			return 0, 0, false
		}
		endTime = lastTS
		if endTime <= startTime {
			return 0, 0, false
		}
		ft.End = condition.After(endTime-startTime, ft.Start)
	} else {
		endTimes := log.SatisfiedTimes([]*condition.Condition{ft.End})
		if len(endTimes) == 0 || endTimes[0] == nil {
			return 0, 0, false
		}
		endTime = *endTimes[0]
	}

	if startTime >= endTime {
		return 0, 0, false
	}
	return startTime, endTime, true
}

// generateInputs implements step 4.
func (s *Scaffold) generateInputs(sequences map[frame.Key]*sequence.Sequence, startTime, endTime int64, initToDefault bool) map[frame.Key]*sequence.Sequence {
	out := map[frame.Key]*sequence.Sequence{}
	for key, seq := range sequences {
		if !key.DataType.IsInput() {
			continue
		}
		// includeLeadIn is deliberately false here: GetSubsequence's own
		// lead-in insertion would always land a point at local t=0
		// whenever prior data exists, making initToDefault unreachable
		// below. The lead-in value (if any) is fetched separately so
		// initToDefault can override it.
		sub := seq.GetSubsequence(startTime, endTime, false).Shift(-startTime)
		if sub.Len() < 1 || sub.At(0).Time > 0 {
			leadIn, haveLeadIn := seq.GetSample(startTime)
			startValue, ok := leadIn, haveLeadIn
			if initToDefault || !haveLeadIn {
				startValue, ok = s.DefaultValues.Get(preferences.NewKey(key.DataType.String(), key.Channel))
			}
			if ok {
				sub.InsertAt(0, startValue)
			}
		}

		interpolation, ok := s.Interpolations.Get(preferences.NewKey(key.DataType.String(), key.Channel))
		if !ok {
			interpolation = sequence.Mid
		}
		out[key] = sub.Interpolate(interpolation, timeunit.Millisecond)
	}
	return out
}

// generateEvalPoints implements step 5.
func (s *Scaffold) generateEvalPoints(sequences map[frame.Key]*sequence.Sequence, startTime, endTime int64) []evaluator.EvalPoint {
	var out []evaluator.EvalPoint
	for key, seq := range sequences {
		if !key.DataType.IsOutput() {
			continue
		}
		sub := seq.GetSubsequence(startTime, endTime, false).Shift(-startTime).RemoveDuplicates()

		tmpl, ok := s.PointTemplates.Get(preferences.NewKey(key.DataType.String(), key.Channel))
		if !ok {
			tmpl = DefaultEvalPointTemplate()
		}

		for i := 0; i < sub.Len(); i++ {
			pt := sub.At(i)
			var runLength int64
			if i+1 < sub.Len() {
				runLength = sub.At(i + 1).Time - pt.Time
			} else {
				runLength = (endTime - startTime) - pt.Time
			}
			out = append(out, evaluator.EvalPoint{
				DataType:      key.DataType,
				Channel:       key.Channel,
				Expected:      pt.Value,
				IntervalStart: tmpl.IntervalStart.Eval(runLength) + pt.Time,
				IntervalEnd:   tmpl.IntervalEnd.Eval(runLength) + pt.Time,
				Check:         tmpl.Check,
				Portion:       tmpl.Portion,
			})
		}
	}
	return out
}
