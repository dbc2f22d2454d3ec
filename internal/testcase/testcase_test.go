package testcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/evaluator"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/handler"
	"github.com/kwashburn/micrograder/internal/preferences"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/sequence"
)

func buildSample() *TestCase {
	start := condition.After(0, nil)
	end := condition.After(1000, start)

	inputs := map[frame.Key]*sequence.Sequence{
		{DataType: request.DigitalWrite, Channel: "13"}: sequence.FromPoints([]sequence.TimedValue{
			{Time: 0, Value: sequence.Int(1)},
		}),
	}
	f := frame.New(start, end, inputs, 0)

	defaults := preferences.New[sequence.Value]()
	defaults.Set(preferences.NewKey(request.DigitalRead.String(), "13"), sequence.Int(0))

	h := handler.New(condition.And(end), []*frame.Frame{f}, true, defaults)

	points := []evaluator.EvalPoint{
		{ConditionID: 0, DataType: request.DigitalWrite, Channel: "13", Expected: sequence.Int(1),
			IntervalStart: 0, IntervalEnd: 500, Check: evaluator.Equals{}, Portion: 1.0},
	}
	aggregators := preferences.New[evaluator.Aggregator]()
	aggregators.Set(preferences.NewKey(request.DigitalWrite.String(), "13"), evaluator.AllPass{})

	e := evaluator.New([]*condition.Condition{start}, points, aggregators)
	return New(h, e)
}

func TestTestCaseYAMLRoundTrip(t *testing.T) {
	tc := buildSample()

	out, err := yaml.Marshal(tc)
	require.NoError(t, err)

	var got TestCase
	require.NoError(t, yaml.Unmarshal(out, &got))

	require.Len(t, got.Handler.Frames, 1)
	assert.Equal(t, 0, got.Handler.Frames[0].Priority)
	assert.True(t, got.Handler.Preempt)

	delay, hasDelay := got.Handler.Frames[0].End.Delay()
	assert.True(t, hasDelay)
	assert.Equal(t, int64(1000), delay)

	require.Len(t, got.Evaluator.Points, 1)
	assert.Equal(t, sequence.Int(1), got.Evaluator.Points[0].Expected)
	assert.Equal(t, "13", got.Evaluator.Points[0].Channel)

	v, ok := got.Handler.DefaultValues.Get(preferences.NewKey(request.DigitalRead.String(), "13"))
	require.True(t, ok)
	assert.Equal(t, sequence.Int(0), v)
}

func TestTestCaseYAMLSharesEndConditionWithEvaluatorStartCondition(t *testing.T) {
	tc := buildSample()
	out, err := yaml.Marshal(tc)
	require.NoError(t, err)

	var got TestCase
	require.NoError(t, yaml.Unmarshal(out, &got))

	// The frame's start condition (via its end condition's subcondition)
	// is the same object as the evaluator's sole condition: verify the
	// shared identity survived the round trip rather than becoming two
	// independent clones.
	assert.Same(t, got.Handler.Frames[0].Start, got.Evaluator.Conditions[0])
	assert.Same(t, got.Handler.Frames[0].End.Subconditions()[0], got.Evaluator.Conditions[0])
}

func TestTestCaseYAMLUnregisteredCheckFuncFails(t *testing.T) {
	tc := buildSample()
	tc.Evaluator.Points[0].Check = unregisteredCheck{}

	out, err := yaml.Marshal(tc)
	require.NoError(t, err)

	var got TestCase
	err = yaml.Unmarshal(out, &got)
	assert.Error(t, err)
}

type unregisteredCheck struct{}

func (unregisteredCheck) Check(expected, observed sequence.Value) bool { return true }
func (unregisteredCheck) Description() string                          { return "unregistered-test-check" }
