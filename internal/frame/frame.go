// Package frame implements a single scripted timeline: a window between
// a start and end Condition during which recorded input Sequences can
// answer the device's live queries.
package frame

import (
	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/sequence"
)

// Status is the Frame state machine's current state.
type Status int

const (
	NotBegun Status = iota
	InProgress
	Complete
	Avoided
)

func (s Status) String() string {
	switch s {
	case NotBegun:
		return "NotBegun"
	case InProgress:
		return "InProgress"
	case Complete:
		return "Complete"
	case Avoided:
		return "Avoided"
	default:
		return "Unknown"
	}
}

// Key identifies one input channel: a data type plus channel name (e.g.
// Accelerometer/"z", or DigitalRead/"" for a single-channel request).
type Key struct {
	DataType request.DataType
	Channel  string
}

// Frame is a single scripted timeline: active between Start and End,
// owning the input Sequences it replays to the device while InProgress.
type Frame struct {
	Start    *condition.Condition
	End      *condition.Condition
	Inputs   map[Key]*sequence.Sequence
	Priority int

	status    Status
	startTime int64
}

// New builds a Frame in the NotBegun state.
func New(start, end *condition.Condition, inputs map[Key]*sequence.Sequence, priority int) *Frame {
	if inputs == nil {
		inputs = map[Key]*sequence.Sequence{}
	}
	return &Frame{Start: start, End: end, Inputs: inputs, Priority: priority, status: NotBegun}
}

func (f *Frame) Status() Status { return f.status }

// StartTime returns the frame's start time and whether it has begun.
func (f *Frame) StartTime() (int64, bool) {
	if f.status == NotBegun {
		return 0, false
	}
	return f.startTime, true
}

// UpdateStatus advances the frame's start/end conditions for an
// incoming request and transitions status accordingly.
func (f *Frame) UpdateStatus(r *request.Request) {
	switch f.status {
	case NotBegun:
		f.Start.Update(r)
		f.End.Update(r)
		startAt, startOk := f.Start.SatisfiedAt()
		endAt, endOk := f.End.SatisfiedAt()
		switch {
		case endOk && (!startOk || endAt < startAt):
			f.status = Avoided
		case startOk && endOk:
			// Both conditions fired on this same request (endAt >= startAt):
			// the frame never gets a chance to be InProgress.
			f.status = Complete
			f.startTime = startAt
		case startOk:
			f.status = InProgress
			f.startTime = startAt
		}
	case InProgress:
		f.End.Update(r)
		if f.End.IsSatisfied() {
			f.status = Complete
		}
	}
}

// GetResponse computes this frame's answer to a live input query. It
// does not set Response.Complete (that is the RequestHandler's job,
// derived from its own end_condition). Returns an Error response if any
// requested channel's sequence has no value at the computed time.
func (f *Frame) GetResponse(r *request.Request) *request.Response {
	if f.status != InProgress {
		return request.Error()
	}
	relBase := r.Timestamp - f.startTime

	num := r.Batch.Num
	if num <= 0 {
		num = 1
	}
	period := r.Batch.Period
	isAnalog := r.Analog != nil

	var values []sequence.Value
	for s := 0; s < num; s++ {
		t := relBase + int64(s)*period
		for _, ch := range r.Channels {
			seq, ok := f.Inputs[Key{DataType: r.DataType, Channel: ch}]
			if !ok {
				return request.Error()
			}
			v, ok := seq.GetSample(t)
			if !ok {
				return request.Error()
			}
			if isAnalog {
				fv, ok := asFloat(v)
				if !ok {
					return request.Error()
				}
				bin := r.Analog.ToDigital(fv)
				values = append(values, sequence.Int(int64(bin)))
			} else {
				values = append(values, v)
			}
		}
	}
	return request.Values(values, isAnalog, false)
}

func asFloat(v sequence.Value) (float64, bool) {
	switch t := v.(type) {
	case sequence.Float:
		return float64(t), true
	case sequence.Int:
		return float64(t), true
	default:
		return 0, false
	}
}
