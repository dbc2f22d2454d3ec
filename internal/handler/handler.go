// Package handler implements the RequestHandler scheduler: it owns a
// set of Frames, updates them and its own end condition for every
// incoming request, and dispatches live input queries to whichever
// frame is current.
package handler

import (
	"sort"

	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/preferences"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/sequence"
)

// RequestHandler dispatches each incoming request to the current Frame
// (by priority then start time), falling back to DefaultValues when no
// frame can answer.
type RequestHandler struct {
	EndCondition  *condition.Condition
	Frames        []*frame.Frame
	Preempt       bool
	DefaultValues *preferences.Preferences[sequence.Value]
}

// New builds a RequestHandler. defaults may be nil, meaning every
// undispatchable query errors.
func New(endCondition *condition.Condition, frames []*frame.Frame, preempt bool, defaults *preferences.Preferences[sequence.Value]) *RequestHandler {
	if defaults == nil {
		defaults = preferences.New[sequence.Value]()
	}
	return &RequestHandler{EndCondition: endCondition, Frames: frames, Preempt: preempt, DefaultValues: defaults}
}

// Process updates all owned state for r and returns the Response.
func (h *RequestHandler) Process(r *request.Request) *request.Response {
	for _, f := range h.Frames {
		f.UpdateStatus(r)
	}
	h.EndCondition.Update(r)
	complete := h.EndCondition.IsSatisfied()

	resp := h.classify(r)
	resp.Complete = resp.Complete || complete

	if !r.ResponseExpected && resp.Kind != request.RespError {
		return request.None(resp.Complete)
	}
	return resp
}

func (h *RequestHandler) classify(r *request.Request) *request.Response {
	switch r.Kind {
	case request.KindInvalid:
		return request.Error()
	case request.KindInput:
		return h.dispatchInput(r)
	default:
		return request.Ack(false)
	}
}

// dispatchInput serves a live input query (recorded values, if any, are
// ignored: a live session handler never trusts them, per design).
func (h *RequestHandler) dispatchInput(r *request.Request) *request.Response {
	current := h.currentFrame()
	if current != nil {
		resp := current.GetResponse(r)
		if resp.Kind != request.RespError {
			return resp
		}
	}
	return h.respondFromDefaults(r)
}

func (h *RequestHandler) respondFromDefaults(r *request.Request) *request.Response {
	isAnalog := r.Analog != nil
	num := r.Batch.Num
	if num <= 0 {
		num = 1
	}

	var perChannel []sequence.Value
	for _, ch := range r.Channels {
		v, ok := h.DefaultValues.Get(preferences.NewKey(r.DataType.String(), ch))
		if !ok {
			return request.Error()
		}
		perChannel = append(perChannel, v)
	}

	var values []sequence.Value
	for s := 0; s < num; s++ {
		for i := range r.Channels {
			v := perChannel[i]
			if isAnalog {
				fv, ok := asFloat(v)
				if !ok {
					return request.Error()
				}
				values = append(values, sequence.Int(int64(r.Analog.ToDigital(fv))))
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

// currentFrame selects among InProgress frames the maximum-priority
// subset, tie-broken by start time (latest-started under preemption,
// earliest-started otherwise).
func (h *RequestHandler) currentFrame() *frame.Frame {
	var active []*frame.Frame
	for _, f := range h.Frames {
		if f.Status() == frame.InProgress {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}

	maxPriority := active[0].Priority
	for _, f := range active {
		if f.Priority > maxPriority {
			maxPriority = f.Priority
		}
	}
	var top []*frame.Frame
	for _, f := range active {
		if f.Priority == maxPriority {
			top = append(top, f)
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		ti, _ := top[i].StartTime()
		tj, _ := top[j].StartTime()
		return ti < tj
	})
	if h.Preempt {
		return top[len(top)-1]
	}
	return top[0]
}
