package handler

import (
	"testing"

	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/preferences"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digitalSeq(v int64) *sequence.Sequence {
	return sequence.FromPoints([]sequence.TimedValue{{Time: 0, Value: sequence.Int(v)}})
}

func TestButtonPreemption(t *testing.T) {
	lowFrame := frame.New(
		condition.After(1000, nil), condition.After(10000, nil),
		map[frame.Key]*sequence.Sequence{{DataType: request.DigitalRead, Channel: ""}: digitalSeq(0)},
		0,
	)
	highFrame := frame.New(
		condition.After(2000, nil), condition.After(10000, nil),
		map[frame.Key]*sequence.Sequence{{DataType: request.DigitalRead, Channel: ""}: digitalSeq(1)},
		1,
	)
	h := New(condition.After(100000, nil), []*frame.Frame{lowFrame, highFrame}, true, nil)

	h.Process(request.NewEvent(1000, request.InitEvent, ""))
	h.Process(request.NewEvent(2000, request.InitEvent, ""))

	req := request.NewInput(2500, request.DigitalRead, []string{""}, nil, nil, analog.Single, true)
	resp := h.Process(req)
	require.Equal(t, request.RespValues, resp.Kind)
	assert.Equal(t, sequence.Int(1), resp.Values[0], "higher-priority frame should win under preemption")
}

func TestFallbackToDefaultsWhenNoFrameActive(t *testing.T) {
	defaults := preferences.New[sequence.Value]()
	defaults.Set(preferences.NewKey("DigitalRead", ""), sequence.Int(7))
	h := New(condition.After(100000, nil), nil, false, defaults)

	req := request.NewInput(0, request.DigitalRead, []string{""}, nil, nil, analog.Single, true)
	resp := h.Process(req)
	require.Equal(t, request.RespValues, resp.Kind)
	assert.Equal(t, sequence.Int(7), resp.Values[0])
}

func TestErrorWhenNoDefaultAvailable(t *testing.T) {
	h := New(condition.After(100000, nil), nil, false, nil)
	req := request.NewInput(0, request.DigitalRead, []string{""}, nil, nil, analog.Single, true)
	resp := h.Process(req)
	assert.Equal(t, request.RespError, resp.Kind)
}

func TestInvalidRequestErrors(t *testing.T) {
	h := New(condition.After(100000, nil), nil, false, nil)
	resp := h.Process(request.NewInvalid(0))
	assert.Equal(t, request.RespError, resp.Kind)
	assert.True(t, resp.Complete)
}

func TestResponseExpectedFalseYieldsNone(t *testing.T) {
	h := New(condition.After(100000, nil), nil, false, nil)
	req := request.NewOutput(0, request.DigitalWrite, []string{""}, []sequence.Value{sequence.Int(1)}, nil)
	req.ResponseExpected = false
	resp := h.Process(req)
	assert.Equal(t, request.RespNone, resp.Kind)
}
