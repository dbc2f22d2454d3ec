// Package condition implements the temporal predicate algebra used to
// mark the start/end of Frames and the endpoints EvalPoints are
// evaluated relative to. Cause is modeled as an interface (Predicate)
// rather than dynamic dispatch on int-vs-callable.
package condition

import "github.com/kwashburn/micrograder/internal/request"

// Predicate is a human-describable first-class callable over a request,
// kept as an interface (rather than a bare function) so descriptive
// output can name it.
type Predicate interface {
	Evaluate(r *request.Request) bool
	Description() string
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc struct {
	Fn   func(r *request.Request) bool
	Desc string
}

func (p PredicateFunc) Evaluate(r *request.Request) bool { return p.Fn(r) }
func (p PredicateFunc) Description() string              { return p.Desc }

// Kind distinguishes the three Condition variants.
type Kind int

const (
	KindAfter Kind = iota
	KindOr
	KindAnd
)

// Condition is a node in the temporal predicate tree. Exactly one of
// Delay/Predicate is meaningful, and only for the After variant;
// Subconditions is used by all three variants (After reads only the
// first, if any).
type Condition struct {
	kind          Kind
	delay         int64
	hasDelay      bool
	predicate     Predicate
	subconditions []*Condition

	satisfiedAt     *int64
	lastUpdateRequest *request.Request
}

// After builds a Condition satisfied `delay` time units after its
// (optional) child is satisfied. With no child, the virtual child is
// considered satisfied at t=0.
func After(delay int64, child *Condition) *Condition {
	c := &Condition{kind: KindAfter, delay: delay, hasDelay: true}
	if child != nil {
		c.subconditions = []*Condition{child}
	}
	return c
}

// AfterPredicate builds a Condition satisfied at the timestamp of the
// first request, after the child's satisfaction, for which pred holds.
func AfterPredicate(pred Predicate, child *Condition) *Condition {
	c := &Condition{kind: KindAfter, predicate: pred}
	if child != nil {
		c.subconditions = []*Condition{child}
	}
	return c
}

// Or builds a Condition satisfied at the minimum of its children's
// satisfaction times.
func Or(children ...*Condition) *Condition {
	return &Condition{kind: KindOr, subconditions: children}
}

// And builds a Condition satisfied at the maximum of its children's
// satisfaction times, once every child is satisfied.
func And(children ...*Condition) *Condition {
	return &Condition{kind: KindAnd, subconditions: children}
}

// IsSatisfied reports whether the condition has a satisfaction time.
func (c *Condition) IsSatisfied() bool { return c.satisfiedAt != nil }

// SatisfiedAt returns the satisfaction time and whether it is set.
func (c *Condition) SatisfiedAt() (int64, bool) {
	if c.satisfiedAt == nil {
		return 0, false
	}
	return *c.satisfiedAt, true
}

// Update advances the condition's state given an incoming request.
// Idempotent per request identity: a second call with the same request
// pointer is a no-op, matching the memo-guarded replay semantics nested
// conditions rely on when shared by identity across frames.
func (c *Condition) Update(r *request.Request) {
	if c.lastUpdateRequest == r {
		return
	}
	c.lastUpdateRequest = r

	if c.IsSatisfied() {
		return
	}

	switch c.kind {
	case KindAfter:
		c.updateAfter(r)
	case KindOr:
		c.updateOr(r)
	case KindAnd:
		c.updateAnd(r)
	}
}

func (c *Condition) updateAfter(r *request.Request) {
	var startTime int64
	haveStart := true
	if len(c.subconditions) > 0 {
		c.subconditions[0].Update(r)
		startTime, haveStart = c.subconditions[0].SatisfiedAt()
	} else {
		startTime = 0
	}
	if !haveStart {
		return
	}

	if c.hasDelay {
		deadline := startTime + c.delay
		if r.Timestamp >= deadline {
			c.setSatisfied(deadline)
		}
		return
	}
	if r.Timestamp >= startTime && c.predicate != nil && c.predicate.Evaluate(r) {
		c.setSatisfied(r.Timestamp)
	}
}

func (c *Condition) updateOr(r *request.Request) {
	var min int64
	found := false
	for _, sub := range c.subconditions {
		sub.Update(r)
		if t, ok := sub.SatisfiedAt(); ok {
			if !found || t < min {
				min = t
				found = true
			}
		}
	}
	if found {
		c.setSatisfied(min)
	}
}

func (c *Condition) updateAnd(r *request.Request) {
	var max int64
	all := true
	for _, sub := range c.subconditions {
		sub.Update(r)
		t, ok := sub.SatisfiedAt()
		if !ok {
			all = false
			continue
		}
		if t > max {
			max = t
		}
	}
	if all {
		c.setSatisfied(max)
	}
}

func (c *Condition) setSatisfied(t int64) {
	v := t
	c.satisfiedAt = &v
}

// Clone returns a deep, state-reset copy of the condition tree: every
// node's satisfiedAt and last-update memo are cleared, but the
// structure (delay/predicate/children) is preserved. The Evaluator uses
// this to replay a log against an independent copy of the handler's
// start/end conditions without mutating the live ones.
//
// Conditions are shared by identity across frames (the same child
// Condition object may be reachable through more than one parent); a
// naive per-call clone would lose that sharing and double-count work
// (harmlessly, since conditions are pure, but wastefully). Clone tracks
// already-cloned nodes by identity so shared structure stays shared.
func (c *Condition) Clone() *Condition {
	return c.cloneWithMemo(map[*Condition]*Condition{})
}

func (c *Condition) cloneWithMemo(memo map[*Condition]*Condition) *Condition {
	if existing, ok := memo[c]; ok {
		return existing
	}
	clone := &Condition{
		kind:      c.kind,
		delay:     c.delay,
		hasDelay:  c.hasDelay,
		predicate: c.predicate,
	}
	memo[c] = clone
	for _, sub := range c.subconditions {
		clone.subconditions = append(clone.subconditions, sub.cloneWithMemo(memo))
	}
	return clone
}

// KindOf, Delay, PredicateOf, and Subconditions expose a Condition's
// structure read-only, for the testcase package's YAML encoder (which
// lives outside this package and cannot see the unexported fields).
func (c *Condition) KindOf() Kind                { return c.kind }
func (c *Condition) Delay() (int64, bool)        { return c.delay, c.hasDelay }
func (c *Condition) PredicateOf() Predicate      { return c.predicate }
func (c *Condition) Subconditions() []*Condition { return c.subconditions }

// FromParts rebuilds a Condition node from its serialized parts, for
// the testcase package's YAML decoder. Not for general use; prefer
// After/AfterPredicate/Or/And when constructing a condition by hand.
func FromParts(kind Kind, delay int64, hasDelay bool, predicate Predicate, subconditions []*Condition) *Condition {
	return &Condition{kind: kind, delay: delay, hasDelay: hasDelay, predicate: predicate, subconditions: subconditions}
}

// CloneForest clones a slice of Conditions with a shared memo, so
// structure shared across the forest (e.g. a frame's end condition
// referencing another frame's start condition) stays shared in the
// clones too.
func CloneForest(roots []*Condition) []*Condition {
	memo := map[*Condition]*Condition{}
	out := make([]*Condition, len(roots))
	for i, r := range roots {
		out[i] = r.cloneWithMemo(memo)
	}
	return out
}
