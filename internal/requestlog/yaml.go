// YAML persistence for RequestLog, grounded on the gopkg.in/yaml.v3
// stack used across this module for opaque-but-human-diffable
// round-trip fixtures. The on-disk shape is implementation-defined; the
// only promise kept is save-then-load equality.
package requestlog

import (
	"fmt"

	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/screen"
	"github.com/kwashburn/micrograder/internal/sequence"
	"gopkg.in/yaml.v3"
)

type yamlDoc struct {
	Requests []yamlRequest `yaml:"requests"`
}

type yamlRequest struct {
	Kind             int         `yaml:"kind"`
	Timestamp        int64       `yaml:"timestamp"`
	DataType         int         `yaml:"data_type"`
	Channels         []string    `yaml:"channels,omitempty"`
	Values           []yamlValue `yaml:"values,omitempty"`
	Analog           *analog.Params `yaml:"analog,omitempty"`
	BatchNum         int         `yaml:"batch_num,omitempty"`
	BatchPeriod      int64       `yaml:"batch_period,omitempty"`
	ResponseExpected bool        `yaml:"response_expected,omitempty"`
	Text             string      `yaml:"text,omitempty"`
	HasValues        bool        `yaml:"has_values,omitempty"`
}

type yamlValue struct {
	Kind   string       `yaml:"kind"`
	Int    int64        `yaml:"int,omitempty"`
	Float  float64      `yaml:"float,omitempty"`
	Text   string       `yaml:"text,omitempty"`
	Screen *yamlScreen  `yaml:"screen,omitempty"`
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

// MarshalYAML implements yaml.Marshaler.
func (l *RequestLog) MarshalYAML() (interface{}, error) {
	doc := yamlDoc{Requests: make([]yamlRequest, len(l.requests))}
	for i, r := range l.requests {
		yr := yamlRequest{
			Kind:             int(r.Kind),
			Timestamp:        r.Timestamp,
			DataType:         int(r.DataType),
			Channels:         r.Channels,
			Analog:           r.Analog,
			BatchNum:         r.Batch.Num,
			BatchPeriod:      r.Batch.Period,
			ResponseExpected: r.ResponseExpected,
			Text:             r.Text,
			HasValues:        r.Values != nil,
		}
		for _, v := range r.Values {
			yr.Values = append(yr.Values, encodeValue(v))
		}
		doc.Requests[i] = yr
	}
	return doc, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *RequestLog) UnmarshalYAML(value *yaml.Node) error {
	var doc yamlDoc
	if err := value.Decode(&doc); err != nil {
		return fmt.Errorf("requestlog: decode: %w", err)
	}
	l.requests = make([]*request.Request, len(doc.Requests))
	for i, yr := range doc.Requests {
		r := &request.Request{
			Kind:             request.Kind(yr.Kind),
			Timestamp:        yr.Timestamp,
			DataType:         request.DataType(yr.DataType),
			Channels:         yr.Channels,
			Analog:           yr.Analog,
			Batch:            analog.BatchParams{Num: yr.BatchNum, Period: yr.BatchPeriod},
			ResponseExpected: yr.ResponseExpected,
			Text:             yr.Text,
		}
		if yr.HasValues {
			r.Values = make([]sequence.Value, len(yr.Values))
			for j, yv := range yr.Values {
				r.Values[j] = decodeValue(yv)
			}
		}
		l.requests[i] = r
	}
	return nil
}
