// Package request defines the tagged Request/Response message model
// that flows between the codec, RequestLog, RequestHandler, and
// Evaluator. Requests are immutable after construction.
package request

import (
	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/sequence"
)

// DataType enumerates every message code's semantic payload kind.
type DataType int

const (
	DigitalRead DataType = iota
	DigitalWrite
	AnalogRead
	AnalogWrite
	Accelerometer
	Gyroscope
	Magnetometer
	ScreenInit
	ScreenFull
	ScreenTile
	InitEvent
	PrintEvent
	GPSEvent
	WifiRequestEvent
	WifiResponseEvent
)

func (d DataType) String() string {
	switch d {
	case DigitalRead:
		return "DigitalRead"
	case DigitalWrite:
		return "DigitalWrite"
	case AnalogRead:
		return "AnalogRead"
	case AnalogWrite:
		return "AnalogWrite"
	case Accelerometer:
		return "Accelerometer"
	case Gyroscope:
		return "Gyroscope"
	case Magnetometer:
		return "Magnetometer"
	case ScreenInit:
		return "ScreenInit"
	case ScreenFull:
		return "ScreenFull"
	case ScreenTile:
		return "ScreenTile"
	case InitEvent:
		return "Init"
	case PrintEvent:
		return "Print"
	case GPSEvent:
		return "GPS"
	case WifiRequestEvent:
		return "WifiRequest"
	case WifiResponseEvent:
		return "WifiResponse"
	default:
		return "Unknown"
	}
}

// IsInput reports whether this data type represents a value the host is
// asked to supply (a query the firmware is blocked on).
func (d DataType) IsInput() bool {
	switch d {
	case DigitalRead, AnalogRead, Accelerometer, Gyroscope, Magnetometer:
		return true
	default:
		return false
	}
}

// IsOutput reports whether this data type represents a value the device
// is reporting to the host.
func (d DataType) IsOutput() bool {
	switch d {
	case DigitalWrite, AnalogWrite, ScreenFull, ScreenTile:
		return true
	default:
		return false
	}
}

// ThreeAxis is the channel set shared by Accelerometer, Gyroscope, and
// Magnetometer requests.
var ThreeAxis = []string{"x", "y", "z"}

// Kind is the Request tag.
type Kind int

const (
	KindInput Kind = iota
	KindOutput
	KindEvent
	KindInvalid
)

// Request is an immutable, tagged incoming message.
//
//   - Input: DataType/Channels/[Values]/[Analog]/Batch/ResponseExpected.
//     Values is nil for a live query, populated when replaying a
//     recorded query.
//   - Output: DataType/Channels/Values/[Analog].
//   - Event: DataType/[Text].
//   - Invalid: carries only a Timestamp, for malformed wire frames.
type Request struct {
	Kind             Kind
	Timestamp        int64
	DataType         DataType
	Channels         []string
	Values           []sequence.Value
	Analog           *analog.Params
	Batch            analog.BatchParams
	ResponseExpected bool
	Text             string
}

// NewInput builds a live-query or recorded-replay Input request.
func NewInput(ts int64, dt DataType, channels []string, values []sequence.Value, params *analog.Params, batch analog.BatchParams, responseExpected bool) *Request {
	return &Request{
		Kind:             KindInput,
		Timestamp:        ts,
		DataType:         dt,
		Channels:         channels,
		Values:           values,
		Analog:           params,
		Batch:            batch,
		ResponseExpected: responseExpected,
	}
}

// NewOutput builds an Output request (the device reporting values).
func NewOutput(ts int64, dt DataType, channels []string, values []sequence.Value, params *analog.Params) *Request {
	return &Request{
		Kind:      KindOutput,
		Timestamp: ts,
		DataType:  dt,
		Channels:  channels,
		Values:    values,
		Analog:    params,
	}
}

// NewEvent builds an Event request (Init, Print, GPS, Wifi).
func NewEvent(ts int64, dt DataType, text string) *Request {
	return &Request{Kind: KindEvent, Timestamp: ts, DataType: dt, Text: text}
}

// NewInvalid builds an Invalid request for a malformed wire frame.
func NewInvalid(ts int64) *Request {
	return &Request{Kind: KindInvalid, Timestamp: ts}
}

// ResponseKind is the Response tag.
type ResponseKind int

const (
	RespAck ResponseKind = iota
	RespError
	RespValues
	RespNone
)

// Response is a tagged outgoing message. Complete signals the session
// should end after this response is sent.
type Response struct {
	Kind     ResponseKind
	Complete bool
	Values   []sequence.Value
	IsAnalog bool // Values are int32 bins on the wire, rather than uint8.
}

func Ack(complete bool) *Response {
	return &Response{Kind: RespAck, Complete: complete}
}

// Error responses always carry Complete=true: per the error taxonomy,
// any Error ends the session.
func Error() *Response {
	return &Response{Kind: RespError, Complete: true}
}

func Values(values []sequence.Value, isAnalog, complete bool) *Response {
	return &Response{Kind: RespValues, Values: values, IsAnalog: isAnalog, Complete: complete}
}

func None(complete bool) *Response {
	return &Response{Kind: RespNone, Complete: complete}
}
