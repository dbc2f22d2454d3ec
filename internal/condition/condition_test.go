package condition

import (
	"testing"

	"github.com/kwashburn/micrograder/internal/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func isInit(r *request.Request) bool  { return r.Kind == request.KindEvent && r.DataType == request.InitEvent }
func isPrint(r *request.Request) bool { return r.Kind == request.KindEvent && r.DataType == request.PrintEvent }

func TestConditionAndOrScenario(t *testing.T) {
	cond0 := After(100, nil)
	cond1 := AfterPredicate(PredicateFunc{Fn: isInit, Desc: "is_init"}, nil)
	cond2 := AfterPredicate(PredicateFunc{Fn: isPrint, Desc: "is_print"}, cond1)
	cond3 := Or(cond0, cond1, cond2)
	cond4 := And(cond0, cond1, cond2, cond3)

	reqs := []*request.Request{
		request.NewEvent(50, request.PrintEvent, "x"),
		request.NewEvent(100, request.InitEvent, ""),
		request.NewEvent(200, request.WifiRequestEvent, ""),
		request.NewEvent(300, request.PrintEvent, "y"),
	}

	for _, r := range reqs {
		cond0.Update(r)
		cond1.Update(r)
		cond2.Update(r)
		cond3.Update(r)
		cond4.Update(r)
	}

	want := []int64{100, 100, 300, 100, 300}
	for i, c := range []*Condition{cond0, cond1, cond2, cond3, cond4} {
		got, ok := c.SatisfiedAt()
		require.True(t, ok, "condition %d should be satisfied", i)
		assert.Equal(t, want[i], got, "condition %d", i)
	}
}

func TestUpdateIsIdempotentPerRequestIdentity(t *testing.T) {
	c := After(100, nil)
	r := request.NewEvent(150, request.InitEvent, "")
	c.Update(r)
	t1, _ := c.SatisfiedAt()
	c.Update(r) // same pointer, should be a no-op
	t2, _ := c.SatisfiedAt()
	assert.Equal(t, t1, t2)
}

func TestSatisfactionNeverRetracted(t *testing.T) {
	c := After(100, nil)
	c.Update(request.NewEvent(100, request.InitEvent, ""))
	first, ok := c.SatisfiedAt()
	require.True(t, ok)
	c.Update(request.NewEvent(500, request.InitEvent, ""))
	second, _ := c.SatisfiedAt()
	assert.Equal(t, first, second)
}

func TestCloneSharesIdentityAcrossSharedSubconditions(t *testing.T) {
	shared := AfterPredicate(PredicateFunc{Fn: isInit, Desc: "is_init"}, nil)
	cond2 := AfterPredicate(PredicateFunc{Fn: isPrint, Desc: "is_print"}, shared)
	cond3 := Or(shared, cond2)

	clones := CloneForest([]*Condition{cond3})
	clone3 := clones[0]
	// clone3.subconditions[0] (clone of shared) must be the same object
	// as cond2's clone of its own child.
	assert.Same(t, clone3.subconditions[0], clone3.subconditions[1].subconditions[0])
}

// Property 1, for a delay-based After condition: once satisfied, its
// satisfaction time never changes under further updates.
func TestPropertySatisfactionIsMonotone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		delay := rapid.Int64Range(0, 50).Draw(rt, "delay")
		c := After(delay, nil)
		n := rapid.IntRange(1, 10).Draw(rt, "n")
		tm := int64(0)
		var lastSatisfied *int64
		for i := 0; i < n; i++ {
			tm += rapid.Int64Range(0, 20).Draw(rt, "dt")
			r := request.NewEvent(tm, request.InitEvent, "")
			c.Update(r)
			if v, ok := c.SatisfiedAt(); ok {
				if lastSatisfied != nil {
					assert.Equal(rt, *lastSatisfied, v)
				}
				lastSatisfied = &v
			}
		}
	})
}
