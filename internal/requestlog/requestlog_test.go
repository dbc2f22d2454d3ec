package requestlog

import (
	"testing"

	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/screen"
	"github.com/kwashburn/micrograder/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExtractSequencesExpandsBatches(t *testing.T) {
	log := New()
	log.Append(request.NewOutput(0, request.DigitalWrite, []string{""}, []sequence.Value{sequence.Int(1)}, nil))
	req := request.NewInput(10, request.AnalogRead,
		[]string{"x", "y"}, []sequence.Value{sequence.Float(1), sequence.Float(2), sequence.Float(3), sequence.Float(4)},
		nil, analog.BatchParams{Num: 2, Period: 5}, true)
	log.Append(req)

	seqs := log.ExtractSequences()
	xSeq := seqs[frame.Key{DataType: request.AnalogRead, Channel: "x"}]
	require.NotNil(t, xSeq)
	assert.Equal(t, 2, xSeq.Len())
	assert.Equal(t, int64(10), xSeq.At(0).Time)
	assert.Equal(t, sequence.Float(1), xSeq.At(0).Value)
	assert.Equal(t, int64(15), xSeq.At(1).Time)
	assert.Equal(t, sequence.Float(3), xSeq.At(1).Value)
}

func TestExtractSequencesSkipsLiveQueries(t *testing.T) {
	log := New()
	log.Append(request.NewInput(0, request.DigitalRead, []string{""}, nil, nil, analog.Single, true))
	seqs := log.ExtractSequences()
	assert.Empty(t, seqs)
}

func TestSatisfiedTimesReplaysWithoutMutatingOriginal(t *testing.T) {
	log := New()
	c := condition.After(100, nil)
	log.Append(request.NewEvent(0, request.InitEvent, ""))
	log.Append(request.NewEvent(100, request.InitEvent, ""))

	times := log.SatisfiedTimes([]*condition.Condition{c})
	require.NotNil(t, times[0])
	assert.Equal(t, int64(100), *times[0])
	assert.False(t, c.IsSatisfied(), "the original condition must not be mutated by replay")
}

func TestYAMLRoundTrip(t *testing.T) {
	log := New()
	log.Append(request.NewOutput(0, request.DigitalWrite, []string{""}, []sequence.Value{sequence.Int(1)}, nil))
	buf := screen.NewBuffer(8, 8)
	buf.PaintTile(screen.Tile{0xFF, 0, 0, 0, 0, 0, 0, 0}, 0, 0)
	log.Append(request.NewOutput(5, request.ScreenFull, []string{""}, []sequence.Value{buf}, nil))
	log.Append(request.NewEvent(10, request.PrintEvent, "hello"))
	log.Append(request.NewInput(15, request.DigitalRead, []string{""}, nil, nil, analog.Single, true))

	out, err := yaml.Marshal(log)
	require.NoError(t, err)

	var loaded RequestLog
	require.NoError(t, yaml.Unmarshal(out, &loaded))

	require.Equal(t, log.Len(), loaded.Len())
	orig := log.Requests()
	got := loaded.Requests()
	for i := range orig {
		assert.Equal(t, orig[i].Kind, got[i].Kind)
		assert.Equal(t, orig[i].Timestamp, got[i].Timestamp)
		assert.Equal(t, orig[i].DataType, got[i].DataType)
		assert.Equal(t, orig[i].Text, got[i].Text)
	}
	assert.Nil(t, got[3].Values, "live query should round-trip with no recorded values")

	gotBuf, ok := got[1].Values[0].(*screen.Buffer)
	require.True(t, ok)
	assert.True(t, gotBuf.Equal(buf))
}
