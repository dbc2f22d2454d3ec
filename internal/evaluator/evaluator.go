// Package evaluator scores a recorded session against a set of
// EvalPoints: per-channel assertions stating that, within some interval
// relative to a condition's satisfaction, the observed values should
// match an expectation for at least a required coverage fraction.
package evaluator

import (
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/preferences"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/requestlog"
	"github.com/kwashburn/micrograder/internal/sequence"
)

// epsilon absorbs floating-point accumulation error in the portion
// comparison, per the evaluator's "sum >= portion - epsilon" contract.
const epsilon = 1e-9

// CheckFunc compares an expected value against one observed value. Kept
// as an interface (rather than a bare func) so its Description survives
// into descriptive output.
type CheckFunc interface {
	Check(expected, observed sequence.Value) bool
	Description() string
}

// Equals is the default CheckFunc: exact value equality, treating two
// nils (an undefined observed region) as equal only to a nil expected
// value.
type Equals struct{}

func (Equals) Check(expected, observed sequence.Value) bool {
	if expected == nil || observed == nil {
		return expected == nil && observed == nil
	}
	return expected.Equal(observed)
}
func (Equals) Description() string { return "equals" }

// Aggregator reduces the per-point results for one channel to a single
// pass/fail verdict.
type Aggregator interface {
	Aggregate(results []bool) bool
	Description() string
}

// AllPass is the default Aggregator: every point must pass.
type AllPass struct{}

func (AllPass) Aggregate(results []bool) bool {
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}
func (AllPass) Description() string { return "all" }

// EvalPoint is a single assertion: within [IntervalStart, IntervalEnd)
// relative to Conditions[ConditionID]'s satisfaction time, the
// (DataType, Channel) sequence should carry Expected for at least
// Portion of the interval.
type EvalPoint struct {
	ConditionID   int
	DataType      request.DataType
	Channel       string
	Expected      sequence.Value
	IntervalStart int64
	IntervalEnd   int64
	Check         CheckFunc
	Portion       float64
}

// PointResult is one EvalPoint's outcome.
type PointResult struct {
	Passed   bool
	Observed []sequence.Value
}

// ChannelResult aggregates every EvalPoint result for one (data type,
// channel) key.
type ChannelResult struct {
	Passed bool
	Points []PointResult
}

// Evaluator replays a RequestLog's conditions and scores a fixed list of
// EvalPoints against it.
type Evaluator struct {
	Conditions  []*condition.Condition
	Points      []EvalPoint
	Aggregators *preferences.Preferences[Aggregator]
}

// New builds an Evaluator. aggregators may be nil, meaning every channel
// uses AllPass.
func New(conditions []*condition.Condition, points []EvalPoint, aggregators *preferences.Preferences[Aggregator]) *Evaluator {
	if aggregators == nil {
		aggregators = preferences.New[Aggregator]()
	}
	return &Evaluator{Conditions: conditions, Points: points, Aggregators: aggregators}
}

// Evaluate scores log against e's EvalPoints, returning one
// ChannelResult per (data type, channel) key that has at least one
// EvalPoint.
func (e *Evaluator) Evaluate(log *requestlog.RequestLog) map[frame.Key]ChannelResult {
	satisfiedTimes := log.SatisfiedTimes(e.Conditions)
	sequences := log.ExtractSequences()

	byKey := map[frame.Key][]PointResult{}
	for _, p := range e.Points {
		key := frame.Key{DataType: p.DataType, Channel: p.Channel}
		byKey[key] = append(byKey[key], e.evaluatePoint(sequences, satisfiedTimes, p))
	}

	out := map[frame.Key]ChannelResult{}
	for key, results := range byKey {
		agg, ok := e.Aggregators.Get(preferences.NewKey(key.DataType.String(), key.Channel))
		if !ok {
			agg = AllPass{}
		}
		passes := make([]bool, len(results))
		for i, r := range results {
			passes[i] = r.Passed
		}
		out[key] = ChannelResult{Passed: agg.Aggregate(passes), Points: results}
	}
	return out
}

func (e *Evaluator) evaluatePoint(sequences map[frame.Key]*sequence.Sequence, satisfiedTimes []*int64, p EvalPoint) PointResult {
	if p.ConditionID < 0 || p.ConditionID >= len(satisfiedTimes) || satisfiedTimes[p.ConditionID] == nil {
		return PointResult{Passed: false}
	}
	zero := *satisfiedTimes[p.ConditionID]
	start := p.IntervalStart + zero
	end := p.IntervalEnd + zero

	seq := sequences[frame.Key{DataType: p.DataType, Channel: p.Channel}]
	if seq == nil {
		seq = sequence.New()
	}
	profile := seq.ProfileInterval(start, end)

	var passingFraction float64
	observed := make([]sequence.Value, 0, len(profile))
	check := p.Check
	if check == nil {
		check = Equals{}
	}
	for _, vf := range profile {
		observed = append(observed, vf.Value)
		if check.Check(p.Expected, vf.Value) {
			passingFraction += vf.Fraction
		}
	}
	passed := passingFraction >= p.Portion-epsilon
	return PointResult{Passed: passed, Observed: observed}
}
