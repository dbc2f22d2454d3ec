package frame

import (
	"testing"

	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameStateMachineHappyPath(t *testing.T) {
	start := condition.After(100, nil)
	end := condition.After(1000, nil)
	f := New(start, end, nil, 0)
	assert.Equal(t, NotBegun, f.Status())

	f.UpdateStatus(request.NewEvent(100, request.InitEvent, ""))
	assert.Equal(t, InProgress, f.Status())
	st, ok := f.StartTime()
	require.True(t, ok)
	assert.Equal(t, int64(100), st)

	f.UpdateStatus(request.NewEvent(1000, request.InitEvent, ""))
	assert.Equal(t, Complete, f.Status())
}

func TestFrameAvoidedWhenEndFiresBeforeStart(t *testing.T) {
	start := condition.After(1000, nil)
	end := condition.After(500, nil)
	f := New(start, end, nil, 0)
	f.UpdateStatus(request.NewEvent(500, request.InitEvent, ""))
	assert.Equal(t, Avoided, f.Status())
}

func TestFrameCompleteWhenStartAndEndTie(t *testing.T) {
	start := condition.After(500, nil)
	end := condition.After(500, nil)
	f := New(start, end, nil, 0)
	f.UpdateStatus(request.NewEvent(500, request.InitEvent, ""))
	assert.Equal(t, Complete, f.Status())
	st, ok := f.StartTime()
	require.True(t, ok)
	assert.Equal(t, int64(500), st)
}

func TestGetResponseRowMajorOrder(t *testing.T) {
	start := condition.After(0, nil)
	end := condition.After(10000, nil)
	seqX := sequence.FromPoints([]sequence.TimedValue{{Time: 0, Value: sequence.Int(1)}})
	seqY := sequence.FromPoints([]sequence.TimedValue{{Time: 0, Value: sequence.Int(2)}})
	inputs := map[Key]*sequence.Sequence{
		{DataType: request.DigitalRead, Channel: "x"}: seqX,
		{DataType: request.DigitalRead, Channel: "y"}: seqY,
	}
	f := New(start, end, inputs, 0)
	f.UpdateStatus(request.NewEvent(0, request.InitEvent, ""))

	req := request.NewInput(0, request.DigitalRead, []string{"x", "y"}, nil, nil, analog.BatchParams{Num: 2, Period: 5}, true)
	resp := f.GetResponse(req)
	require.Equal(t, request.RespValues, resp.Kind)
	assert.Equal(t, []sequence.Value{sequence.Int(1), sequence.Int(2), sequence.Int(1), sequence.Int(2)}, resp.Values)
}

func TestGetResponseErrorsOnMissingChannel(t *testing.T) {
	start := condition.After(0, nil)
	end := condition.After(10000, nil)
	f := New(start, end, nil, 0)
	f.UpdateStatus(request.NewEvent(0, request.InitEvent, ""))
	req := request.NewInput(0, request.DigitalRead, []string{"x"}, nil, nil, analog.Single, true)
	resp := f.GetResponse(req)
	assert.Equal(t, request.RespError, resp.Kind)
}

func TestGetResponseConvertsAnalogToBin(t *testing.T) {
	start := condition.After(0, nil)
	end := condition.After(10000, nil)
	seq := sequence.FromPoints([]sequence.TimedValue{{Time: 0, Value: sequence.Float(2.5098)}})
	inputs := map[Key]*sequence.Sequence{{DataType: request.AnalogRead, Channel: ""}: seq}
	f := New(start, end, inputs, 0)
	f.UpdateStatus(request.NewEvent(0, request.InitEvent, ""))

	params := &analog.Params{MinBin: -128, MaxBin: 127, MinValue: 0, MaxValue: 5.0}
	req := request.NewInput(0, request.AnalogRead, []string{""}, nil, params, analog.Single, true)
	resp := f.GetResponse(req)
	require.Equal(t, request.RespValues, resp.Kind)
	assert.Equal(t, sequence.Int(0), resp.Values[0])
}
