package evaluator

import (
	"testing"

	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/requestlog"
	"github.com/kwashburn/micrograder/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isStart(r *request.Request) bool {
	return r.Kind == request.KindEvent && r.DataType == request.PrintEvent && r.Text == "Start"
}

func TestBlinkyScenarioPasses(t *testing.T) {
	start := condition.AfterPredicate(condition.PredicateFunc{Fn: isStart, Desc: "is_start"}, nil)

	log := requestlog.New()
	log.Append(request.NewEvent(1000, request.PrintEvent, "Start"))
	v := int64(1)
	for ts := int64(1002); ts < 5002; ts += 1000 {
		log.Append(request.NewOutput(ts, request.DigitalWrite, []string{""}, []sequence.Value{sequence.Int(v)}, nil))
		if v == 1 {
			v = 0
		} else {
			v = 1
		}
	}

	points := []EvalPoint{
		{ConditionID: 0, DataType: request.DigitalWrite, Expected: sequence.Int(1), IntervalStart: 200, IntervalEnd: 800, Portion: 1},
		{ConditionID: 0, DataType: request.DigitalWrite, Expected: sequence.Int(0), IntervalStart: 1200, IntervalEnd: 1800, Portion: 1},
		{ConditionID: 0, DataType: request.DigitalWrite, Expected: sequence.Int(1), IntervalStart: 2200, IntervalEnd: 2800, Portion: 1},
		{ConditionID: 0, DataType: request.DigitalWrite, Expected: sequence.Int(0), IntervalStart: 3200, IntervalEnd: 3800, Portion: 1},
	}
	ev := New([]*condition.Condition{start}, points, nil)
	results := ev.Evaluate(log)

	key := frame.Key{DataType: request.DigitalWrite, Channel: ""}
	require.Contains(t, results, key)
	assert.True(t, results[key].Passed, "blinky scenario should evaluate as a pass")
}

func TestConditionOutOfBoundsFails(t *testing.T) {
	ev := New(nil, []EvalPoint{{ConditionID: 5, DataType: request.DigitalWrite, Portion: 1}}, nil)
	results := ev.Evaluate(requestlog.New())
	key := frame.Key{DataType: request.DigitalWrite, Channel: ""}
	assert.False(t, results[key].Passed)
}

func TestUnsatisfiedConditionFailsWithNoObserved(t *testing.T) {
	c := condition.After(1000, nil)
	ev := New([]*condition.Condition{c}, []EvalPoint{{ConditionID: 0, DataType: request.DigitalWrite, Portion: 1}}, nil)
	results := ev.Evaluate(requestlog.New())
	key := frame.Key{DataType: request.DigitalWrite, Channel: ""}
	assert.False(t, results[key].Passed)
	assert.Empty(t, results[key].Points[0].Observed)
}

func TestAnalogInputExtractedWithBatchPeriod(t *testing.T) {
	c := condition.After(0, nil)
	log := requestlog.New()
	log.Append(request.NewInput(0, request.AnalogRead, []string{""}, []sequence.Value{sequence.Float(1), sequence.Float(2)}, nil, analog.BatchParams{Num: 2, Period: 10}, false))
	ev := New([]*condition.Condition{c}, []EvalPoint{
		{ConditionID: 0, DataType: request.AnalogRead, Expected: sequence.Float(2), IntervalStart: 10, IntervalEnd: 20, Portion: 1},
	}, nil)
	results := ev.Evaluate(log)
	key := frame.Key{DataType: request.AnalogRead, Channel: ""}
	assert.True(t, results[key].Passed)
}
