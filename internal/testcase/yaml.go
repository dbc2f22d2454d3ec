// YAML persistence for TestCase, in the same spirit as
// requestlog/yaml.go: the on-disk shape is implementation-defined, the
// only promise kept is save-then-load equality.
//
// Conditions are shared by identity across Frames and the Evaluator
// (a Frame's end condition may be the same object referenced by the
// handler's overall end_condition, and a Frame's start condition is
// also one of the Evaluator's condition list — see scaffold.go). That
// sharing is preserved here via integer node ids, not by re-encoding
// the subtree at every reference.
//
// Predicate, CheckFunc, and Aggregator are first-class callables
// (condition.Predicate, evaluator.CheckFunc, evaluator.Aggregator) and
// cannot be serialized as data; they round-trip by name through a
// small registry seeded with this module's built-ins (condition.Kind
// After/Or/And with no predicate, evaluator.Equals, evaluator.AllPass).
// A TestCase using a custom implementation must register it under its
// Description() before decoding, or decoding that node fails.
package testcase

import (
	"fmt"

	"github.com/kwashburn/micrograder/internal/condition"
	"github.com/kwashburn/micrograder/internal/evaluator"
	"github.com/kwashburn/micrograder/internal/frame"
	"github.com/kwashburn/micrograder/internal/handler"
	"github.com/kwashburn/micrograder/internal/preferences"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/screen"
	"github.com/kwashburn/micrograder/internal/sequence"
	"gopkg.in/yaml.v3"
)

var checkRegistry = map[string]evaluator.CheckFunc{
	(evaluator.Equals{}).Description(): evaluator.Equals{},
}

var aggregatorRegistry = map[string]evaluator.Aggregator{
	(evaluator.AllPass{}).Description(): evaluator.AllPass{},
}

var predicateRegistry = map[string]condition.Predicate{}

// RegisterCheckFunc makes a custom CheckFunc decodable by name, keyed
// by its own Description().
func RegisterCheckFunc(c evaluator.CheckFunc) { checkRegistry[c.Description()] = c }

// RegisterAggregator makes a custom Aggregator decodable by name, keyed
// by its own Description().
func RegisterAggregator(a evaluator.Aggregator) { aggregatorRegistry[a.Description()] = a }

// RegisterPredicate makes a custom Predicate decodable by name, keyed
// by its own Description().
func RegisterPredicate(p condition.Predicate) { predicateRegistry[p.Description()] = p }

type yamlDoc struct {
	Conditions    []yamlCondition      `yaml:"conditions"`
	Frames        []yamlFrame          `yaml:"frames"`
	EndCondition  int                  `yaml:"end_condition"`
	Preempt       bool                 `yaml:"preempt"`
	DefaultValues []yamlValueEntry     `yaml:"default_values,omitempty"`
	EvalConds     []int                `yaml:"eval_conditions"`
	Points        []yamlPoint          `yaml:"points"`
	Aggregators   []yamlAggregatorEntry `yaml:"aggregators,omitempty"`
}

type yamlCondition struct {
	ID            int    `yaml:"id"`
	Kind          int    `yaml:"kind"`
	Delay         int64  `yaml:"delay,omitempty"`
	HasDelay      bool   `yaml:"has_delay,omitempty"`
	Predicate     string `yaml:"predicate,omitempty"`
	Subconditions []int  `yaml:"subconditions,omitempty"`
}

type yamlFrame struct {
	Start    int           `yaml:"start"`
	End      int           `yaml:"end"`
	Priority int           `yaml:"priority"`
	Inputs   []yamlKeyedSeq `yaml:"inputs,omitempty"`
}

type yamlKeyedSeq struct {
	DataType int         `yaml:"data_type"`
	Channel  string      `yaml:"channel"`
	Points   []yamlPoint2 `yaml:"points"`
}

// yamlPoint2 is a bare (time, value) pair, distinct from yamlPoint
// (an EvalPoint) despite the similar name.
type yamlPoint2 struct {
	Time  int64     `yaml:"time"`
	Value yamlValue `yaml:"value"`
}

type yamlValueEntry struct {
	DataType int       `yaml:"data_type"`
	Channel  string    `yaml:"channel"`
	Value    yamlValue `yaml:"value"`
}

type yamlAggregatorEntry struct {
	DataType int    `yaml:"data_type"`
	Channel  string `yaml:"channel"`
	Name     string `yaml:"name"`
}

type yamlPoint struct {
	ConditionID   int       `yaml:"condition_id"`
	DataType      int       `yaml:"data_type"`
	Channel       string    `yaml:"channel"`
	Expected      yamlValue `yaml:"expected"`
	IntervalStart int64     `yaml:"interval_start"`
	IntervalEnd   int64     `yaml:"interval_end"`
	Check         string    `yaml:"check"`
	Portion       float64   `yaml:"portion"`
}

type yamlValue struct {
	Kind   string      `yaml:"kind"`
	Int    int64       `yaml:"int,omitempty"`
	Float  float64     `yaml:"float,omitempty"`
	Text   string      `yaml:"text,omitempty"`
	Screen *yamlScreen `yaml:"screen,omitempty"`
}

type yamlScreen struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Pixels []bool `yaml:"pixels"`
}

func encodeValue(v sequence.Value) yamlValue {
	switch t := v.(type) {
	case sequence.Int:
		return yamlValue{Kind: "int", Int: int64(t)}
	case sequence.Float:
		return yamlValue{Kind: "float", Float: float64(t)}
	case sequence.Text:
		return yamlValue{Kind: "text", Text: string(t)}
	case *screen.Buffer:
		return yamlValue{Kind: "screen", Screen: &yamlScreen{Width: t.Width(), Height: t.Height(), Pixels: t.Pixels()}}
	default:
		return yamlValue{Kind: "nil"}
	}
}

func decodeValue(v yamlValue) sequence.Value {
	switch v.Kind {
	case "int":
		return sequence.Int(v.Int)
	case "float":
		return sequence.Float(v.Float)
	case "text":
		return sequence.Text(v.Text)
	case "screen":
		return screen.FromPixels(v.Screen.Width, v.Screen.Height, v.Screen.Pixels)
	default:
		return nil
	}
}

// collectConditions walks every root's reachable subtree (roots may
// repeat or share children), assigning each distinct node a stable id
// in first-discovery order.
func collectConditions(roots []*condition.Condition) ([]*condition.Condition, map[*condition.Condition]int) {
	var order []*condition.Condition
	ids := map[*condition.Condition]int{}
	var visit func(c *condition.Condition)
	visit = func(c *condition.Condition) {
		if c == nil {
			return
		}
		if _, ok := ids[c]; ok {
			return
		}
		ids[c] = len(order)
		order = append(order, c)
		for _, sub := range c.Subconditions() {
			visit(sub)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return order, ids
}

func idOf(c *condition.Condition, ids map[*condition.Condition]int) int {
	if c == nil {
		return -1
	}
	return ids[c]
}

func encodeConditions(order []*condition.Condition, ids map[*condition.Condition]int) []yamlCondition {
	out := make([]yamlCondition, len(order))
	for i, c := range order {
		delay, hasDelay := c.Delay()
		var predName string
		if p := c.PredicateOf(); p != nil {
			predName = p.Description()
		}
		var subIDs []int
		for _, sub := range c.Subconditions() {
			subIDs = append(subIDs, idOf(sub, ids))
		}
		out[i] = yamlCondition{
			ID: i, Kind: int(c.KindOf()), Delay: delay, HasDelay: hasDelay,
			Predicate: predName, Subconditions: subIDs,
		}
	}
	return out
}

// decodeConditions rebuilds every node in yc, memoized by id so shared
// structure round-trips as shared structure. yc is assumed acyclic, as
// every Condition constructor in this module guarantees.
func decodeConditions(yc []yamlCondition) ([]*condition.Condition, error) {
	built := make([]*condition.Condition, len(yc))
	var build func(id int) (*condition.Condition, error)
	build = func(id int) (*condition.Condition, error) {
		if built[id] != nil {
			return built[id], nil
		}
		n := yc[id]
		subs := make([]*condition.Condition, len(n.Subconditions))
		for i, sid := range n.Subconditions {
			if sid < 0 {
				continue
			}
			sub, err := build(sid)
			if err != nil {
				return nil, err
			}
			subs[i] = sub
		}
		var pred condition.Predicate
		if n.Predicate != "" {
			pred = predicateRegistry[n.Predicate]
			if pred == nil {
				return nil, fmt.Errorf("testcase: predicate %q is not registered", n.Predicate)
			}
		}
		c := condition.FromParts(condition.Kind(n.Kind), n.Delay, n.HasDelay, pred, subs)
		built[id] = c
		return c, nil
	}
	for i := range yc {
		if _, err := build(i); err != nil {
			return nil, err
		}
	}
	return built, nil
}

func conditionOrNil(id int, built []*condition.Condition) *condition.Condition {
	if id < 0 {
		return nil
	}
	return built[id]
}

func encodeInputs(inputs map[frame.Key]*sequence.Sequence) []yamlKeyedSeq {
	out := make([]yamlKeyedSeq, 0, len(inputs))
	for key, seq := range inputs {
		ks := yamlKeyedSeq{DataType: int(key.DataType), Channel: key.Channel}
		for _, p := range seq.Points() {
			ks.Points = append(ks.Points, yamlPoint2{Time: p.Time, Value: encodeValue(p.Value)})
		}
		out = append(out, ks)
	}
	return out
}

func decodeInputs(ks []yamlKeyedSeq) map[frame.Key]*sequence.Sequence {
	out := map[frame.Key]*sequence.Sequence{}
	for _, k := range ks {
		var pts []sequence.TimedValue
		for _, p := range k.Points {
			pts = append(pts, sequence.TimedValue{Time: p.Time, Value: decodeValue(p.Value)})
		}
		out[frame.Key{DataType: request.DataType(k.DataType), Channel: k.Channel}] = sequence.FromPoints(pts)
	}
	return out
}

// MarshalYAML implements yaml.Marshaler.
func (tc *TestCase) MarshalYAML() (interface{}, error) {
	var roots []*condition.Condition
	roots = append(roots, tc.Handler.EndCondition)
	for _, f := range tc.Handler.Frames {
		roots = append(roots, f.Start, f.End)
	}
	roots = append(roots, tc.Evaluator.Conditions...)

	order, ids := collectConditions(roots)
	doc := yamlDoc{
		Conditions:   encodeConditions(order, ids),
		EndCondition: idOf(tc.Handler.EndCondition, ids),
		Preempt:      tc.Handler.Preempt,
	}

	for _, f := range tc.Handler.Frames {
		doc.Frames = append(doc.Frames, yamlFrame{
			Start:    idOf(f.Start, ids),
			End:      idOf(f.End, ids),
			Priority: f.Priority,
			Inputs:   encodeInputs(f.Inputs),
		})
	}

	for _, e := range tc.Handler.DefaultValues.Entries() {
		if len(e.Key) != 2 {
			continue
		}
		doc.DefaultValues = append(doc.DefaultValues, yamlValueEntry{
			DataType: dataTypeFromName(e.Key[0]), Channel: e.Key[1], Value: encodeValue(e.Value),
		})
	}

	for _, c := range tc.Evaluator.Conditions {
		doc.EvalConds = append(doc.EvalConds, idOf(c, ids))
	}
	for _, p := range tc.Evaluator.Points {
		check := p.Check
		if check == nil {
			check = evaluator.Equals{}
		}
		doc.Points = append(doc.Points, yamlPoint{
			ConditionID: p.ConditionID, DataType: int(p.DataType), Channel: p.Channel,
			Expected: encodeValue(p.Expected), IntervalStart: p.IntervalStart, IntervalEnd: p.IntervalEnd,
			Check: check.Description(), Portion: p.Portion,
		})
	}
	for _, e := range tc.Evaluator.Aggregators.Entries() {
		if len(e.Key) != 2 {
			continue
		}
		doc.Aggregators = append(doc.Aggregators, yamlAggregatorEntry{
			DataType: dataTypeFromName(e.Key[0]), Channel: e.Key[1], Name: e.Value.Description(),
		})
	}
	return doc, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (tc *TestCase) UnmarshalYAML(value *yaml.Node) error {
	var doc yamlDoc
	if err := value.Decode(&doc); err != nil {
		return fmt.Errorf("testcase: decode: %w", err)
	}

	built, err := decodeConditions(doc.Conditions)
	if err != nil {
		return err
	}

	frames := make([]*frame.Frame, len(doc.Frames))
	for i, yf := range doc.Frames {
		frames[i] = frame.New(conditionOrNil(yf.Start, built), conditionOrNil(yf.End, built), decodeInputs(yf.Inputs), yf.Priority)
	}

	defaults := preferences.New[sequence.Value]()
	for _, e := range doc.DefaultValues {
		defaults.Set(preferences.NewKey(request.DataType(e.DataType).String(), e.Channel), decodeValue(e.Value))
	}

	tc.Handler = handler.New(conditionOrNil(doc.EndCondition, built), frames, doc.Preempt, defaults)

	var evalConds []*condition.Condition
	for _, id := range doc.EvalConds {
		evalConds = append(evalConds, conditionOrNil(id, built))
	}

	var points []evaluator.EvalPoint
	for _, yp := range doc.Points {
		check, ok := checkRegistry[yp.Check]
		if !ok {
			return fmt.Errorf("testcase: check function %q is not registered", yp.Check)
		}
		points = append(points, evaluator.EvalPoint{
			ConditionID: yp.ConditionID, DataType: request.DataType(yp.DataType), Channel: yp.Channel,
			Expected: decodeValue(yp.Expected), IntervalStart: yp.IntervalStart, IntervalEnd: yp.IntervalEnd,
			Check: check, Portion: yp.Portion,
		})
	}

	aggregators := preferences.New[evaluator.Aggregator]()
	for _, ye := range doc.Aggregators {
		agg, ok := aggregatorRegistry[ye.Name]
		if !ok {
			return fmt.Errorf("testcase: aggregator %q is not registered", ye.Name)
		}
		aggregators.Set(preferences.NewKey(request.DataType(ye.DataType).String(), ye.Channel), agg)
	}

	tc.Evaluator = evaluator.New(evalConds, points, aggregators)
	return nil
}

func dataTypeFromName(name string) int {
	for dt := request.DataType(0); dt <= request.WifiResponseEvent; dt++ {
		if dt.String() == name {
			return int(dt)
		}
	}
	return -1
}
