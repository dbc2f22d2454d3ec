// Package codec translates between the device's wire framing and the
// request/response model used throughout the rest of micrograder. A
// Codec is stateful only insofar as the screen protocol requires: it
// tracks whether ScreenInit has occurred and the tile dimensions it
// declared, so ScreenFull/ScreenTile bodies can be validated and
// ScreenTile's incremental patches can be applied against a running
// buffer.
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"strconv"

	"github.com/kwashburn/micrograder/internal/analog"
	"github.com/kwashburn/micrograder/internal/request"
	"github.com/kwashburn/micrograder/internal/screen"
	"github.com/kwashburn/micrograder/internal/sequence"
	"github.com/kwashburn/micrograder/internal/timeunit"
)

var (
	errScreenTileNotEncodable = errors.New("codec: ScreenTile requests cannot be re-encoded as a single tile patch")
	errUnknownDataType        = errors.New("codec: no wire encoding for this data type")
	errBadPinChannel          = errors.New("codec: channel is not a valid pin number")
)

// messageCode is the device-side wire code, with the response-expected
// flag already masked off.
type messageCode byte

const (
	codeInit          messageCode = 0x00
	codePrint         messageCode = 0x01
	codeDigitalRead   messageCode = 0x20
	codeDigitalWrite  messageCode = 0x21
	codeAnalogRead    messageCode = 0x22
	codeAnalogWrite   messageCode = 0x23
	codeImuAcc        messageCode = 0x30
	codeImuGyro       messageCode = 0x31
	codeImuMag        messageCode = 0x32
	codeScreenInit    messageCode = 0x40
	codeScreenFull    messageCode = 0x41
	codeScreenTile    messageCode = 0x42
	codeGpsFix        messageCode = 0x50
	codeWifiReq       messageCode = 0x60
	codeWifiResp      messageCode = 0x61
	codeAck           messageCode = 0x80
	codeAckComplete   messageCode = 0x81
	codeError         messageCode = 0x82
	codeErrorComplete messageCode = 0x83

	responseExpectedMask = 0x80
	codeMask             = 0x7f
)

const (
	codeBytes      = 1
	timestampBytes = 4
	bodyLenBytes   = 2
	headerBytes    = codeBytes + timestampBytes + bodyLenBytes

	analogParamsSize = 4 * 4
	batchParamsSize  = 2 + 4
)

// Codec decodes device→host request frames and encodes host→device
// response frames. It is not safe for concurrent use; one Codec belongs
// to exactly one session.
type Codec struct {
	screenInit   bool
	tileW, tileH int
	buffer       *screen.Buffer
}

// New returns a Codec with no screen initialized.
func New() *Codec {
	return &Codec{}
}

// ReadRequest reads one framed request from r. A malformed frame (a
// body shorter than its declared length or than its code's layout,
// an unknown code, or a protocol redundancy violation) is reported as
// a *request.Request of KindInvalid, never as a Go error. Go errors
// only arise from r itself: an I/O error, or a header cut short
// (io.EOF / io.ErrUnexpectedEOF), which the session driver treats as a
// transport timeout per the error taxonomy's clause (c).
func (c *Codec) ReadRequest(r io.Reader) (*request.Request, error) {
	var header [headerBytes]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	rawCode := header[0]
	responseExpected := rawCode&responseExpectedMask == 0
	code := messageCode(rawCode & codeMask)

	deviceTS := binary.LittleEndian.Uint32(header[codeBytes : codeBytes+timestampBytes])
	ts := int64(deviceTS) * timeunit.Millisecond

	bodyLen := binary.LittleEndian.Uint16(header[codeBytes+timestampBytes:])
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return request.NewInvalid(ts), nil
			}
			return nil, err
		}
	}

	req := c.decodeBody(code, ts, body)
	if req.Kind == request.KindInput {
		req.ResponseExpected = responseExpected
	}
	return req, nil
}

func (c *Codec) decodeBody(code messageCode, ts int64, body []byte) *request.Request {
	switch code {
	case codeInit:
		return request.NewEvent(ts, request.InitEvent, "")

	case codePrint:
		return request.NewEvent(ts, request.PrintEvent, string(body))

	case codeDigitalRead:
		if len(body) < 1 {
			return request.NewInvalid(ts)
		}
		pin, rest := body[0], body[1:]
		return c.decodeGenericInput(request.DigitalRead, []string{pinChannel(pin)}, false, ts, rest)

	case codeDigitalWrite:
		if len(body) < 2 {
			return request.NewInvalid(ts)
		}
		pin, value := body[0], body[1]
		return request.NewOutput(ts, request.DigitalWrite, []string{pinChannel(pin)}, []sequence.Value{sequence.Int(value)}, nil)

	case codeAnalogRead:
		if len(body) < 1 {
			return request.NewInvalid(ts)
		}
		pin, rest := body[0], body[1:]
		return c.decodeGenericInput(request.AnalogRead, []string{pinChannel(pin)}, true, ts, rest)

	case codeAnalogWrite:
		if len(body) < 1+analogParamsSize+4 {
			return request.NewInvalid(ts)
		}
		pin := body[0]
		params := decodeAnalogParams(body[1 : 1+analogParamsSize])
		value := int32(binary.LittleEndian.Uint32(body[1+analogParamsSize : 1+analogParamsSize+4]))
		return request.NewOutput(ts, request.AnalogWrite, []string{pinChannel(pin)}, []sequence.Value{sequence.Float(params.ToAnalog(value))}, &params)

	case codeImuAcc:
		return c.decodeGenericInput(request.Accelerometer, request.ThreeAxis, true, ts, body)

	case codeImuGyro:
		return c.decodeGenericInput(request.Gyroscope, request.ThreeAxis, true, ts, body)

	case codeImuMag:
		return c.decodeGenericInput(request.Magnetometer, request.ThreeAxis, true, ts, body)

	case codeScreenInit:
		if len(body) < 2 {
			return request.NewInvalid(ts)
		}
		if c.screenInit {
			return request.NewInvalid(ts)
		}
		c.screenInit = true
		c.tileW, c.tileH = int(body[0]), int(body[1])
		c.buffer = screen.NewBuffer(8*c.tileW, 8*c.tileH)
		return request.NewEvent(ts, request.ScreenInit, screenShapeText(8*c.tileW, 8*c.tileH))

	case codeScreenFull:
		if !c.screenInit {
			return request.NewInvalid(ts)
		}
		buf, err := screen.DecodeFull(c.tileW, c.tileH, body)
		if err != nil {
			return request.NewInvalid(ts)
		}
		c.buffer = buf
		return request.NewOutput(ts, request.ScreenFull, []string{""}, []sequence.Value{c.buffer.Copy()}, nil)

	case codeScreenTile:
		if !c.screenInit {
			return request.NewInvalid(ts)
		}
		if len(body) < 10 {
			return request.NewInvalid(ts)
		}
		x, y := int(body[0]), int(body[1])
		var tile screen.Tile
		copy(tile[:], body[2:10])
		c.buffer.PaintTile(tile, 8*x, 8*y)
		return request.NewOutput(ts, request.ScreenTile, []string{""}, []sequence.Value{c.buffer.Copy()}, nil)

	case codeGpsFix:
		return request.NewEvent(ts, request.GPSEvent, "")

	case codeWifiReq:
		return request.NewEvent(ts, request.WifiRequestEvent, "request")

	case codeWifiResp:
		return request.NewEvent(ts, request.WifiResponseEvent, "response")

	default:
		return request.NewInvalid(ts)
	}
}

// decodeGenericInput implements the shared flags/AnalogParams/BatchParams/
// values body layout used by DigitalRead, AnalogRead, and the three IMU
// channels.
func (c *Codec) decodeGenericInput(dt request.DataType, channels []string, isAnalog bool, ts int64, body []byte) *request.Request {
	if len(body) < 1 {
		return request.NewInvalid(ts)
	}
	flags := body[0]
	body = body[1:]
	hasValues := flags&0x1 != 0
	hasBatch := flags&0x2 != 0

	var params *analog.Params
	if isAnalog {
		if len(body) < analogParamsSize {
			return request.NewInvalid(ts)
		}
		p := decodeAnalogParams(body[:analogParamsSize])
		params = &p
		body = body[analogParamsSize:]
	}

	batch := analog.Single
	if hasBatch {
		if len(body) < batchParamsSize {
			return request.NewInvalid(ts)
		}
		batch = decodeBatchParams(body[:batchParamsSize])
		body = body[batchParamsSize:]
	}

	var values []sequence.Value
	if hasValues {
		numValues := len(channels) * batch.Num
		sampleWidth := 1
		if isAnalog {
			sampleWidth = 4
		}
		numBytes := numValues * sampleWidth
		if len(body) < numBytes {
			return request.NewInvalid(ts)
		}
		values = make([]sequence.Value, numValues)
		for i := 0; i < numValues; i++ {
			if isAnalog {
				bin := int32(binary.LittleEndian.Uint32(body[4*i : 4*i+4]))
				values[i] = sequence.Float(params.ToAnalog(bin))
			} else {
				values[i] = sequence.Int(body[i])
			}
		}
		body = body[numBytes:]
	}

	if len(body) > 0 {
		return request.NewInvalid(ts)
	}

	return request.NewInput(ts, dt, channels, values, params, batch, true)
}

func decodeAnalogParams(b []byte) analog.Params {
	minBin := int32(binary.LittleEndian.Uint32(b[0:4]))
	maxBin := int32(binary.LittleEndian.Uint32(b[4:8]))
	minValue := int32(binary.LittleEndian.Uint32(b[8:12]))
	maxValue := int32(binary.LittleEndian.Uint32(b[12:16]))
	return analog.Params{MinBin: minBin, MaxBin: maxBin, MinValue: float64(minValue), MaxValue: float64(maxValue)}
}

func encodeAnalogParams(p analog.Params) []byte {
	out := make([]byte, analogParamsSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(p.MinBin))
	binary.LittleEndian.PutUint32(out[4:8], uint32(p.MaxBin))
	binary.LittleEndian.PutUint32(out[8:12], uint32(int32(p.MinValue)))
	binary.LittleEndian.PutUint32(out[12:16], uint32(int32(p.MaxValue)))
	return out
}

func decodeBatchParams(b []byte) analog.BatchParams {
	num := binary.LittleEndian.Uint16(b[0:2])
	periodMicros := binary.LittleEndian.Uint32(b[2:6])
	return analog.BatchParams{Num: int(num), Period: timeunit.MicrosToMillis(int64(periodMicros))}
}

// pinChannel names a single-pin channel by its decimal pin number, the
// same string form channels take everywhere else (Preferences keys,
// frame.Key, EvalPoint.Channel).
func pinChannel(pin byte) string {
	return strconv.Itoa(int(pin))
}

// EncodeResponse produces the host→device frame for resp: a one-byte
// code chosen from {Ack, AckComplete, Error, ErrorComplete} by
// (is-error, complete), a little-endian uint16 body length, and the
// body itself.
func EncodeResponse(resp *request.Response) []byte {
	var code messageCode
	var body []byte

	switch resp.Kind {
	case request.RespError:
		if resp.Complete {
			code = codeErrorComplete
		} else {
			code = codeError
		}
	case request.RespValues:
		if resp.Complete {
			code = codeAckComplete
		} else {
			code = codeAck
		}
		body = encodeValues(resp.Values, resp.IsAnalog)
	default: // RespAck, RespNone (None is never sent; callers must filter it)
		if resp.Complete {
			code = codeAckComplete
		} else {
			code = codeAck
		}
	}

	out := make([]byte, bodyLenBytes+len(body)+codeBytes)
	out[0] = byte(code)
	binary.LittleEndian.PutUint16(out[codeBytes:codeBytes+bodyLenBytes], uint16(len(body)))
	copy(out[codeBytes+bodyLenBytes:], body)
	return out
}

func encodeValues(values []sequence.Value, isAnalog bool) []byte {
	if isAnalog {
		out := make([]byte, 4*len(values))
		for i, v := range values {
			bin, _ := v.(sequence.Int)
			binary.LittleEndian.PutUint32(out[4*i:4*i+4], uint32(int32(bin)))
		}
		return out
	}
	out := make([]byte, len(values))
	for i, v := range values {
		n, _ := v.(sequence.Int)
		out[i] = byte(n)
	}
	return out
}

// WriteResponse encodes resp and writes it to w in a single call, so a
// framed response lands in one USB packet on a real serial transport.
func WriteResponse(w io.Writer, resp *request.Response) error {
	if resp.Kind == request.RespNone {
		return nil
	}
	_, err := w.Write(EncodeResponse(resp))
	return err
}

// NewBufferedReader wraps r for ReadRequest's small fixed-size header
// and body reads. The transport package supplies a raw io.Reader per connection;
// buffering here keeps repeated small reads off the serial port itself.
func NewBufferedReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}

func screenShapeText(width, height int) string {
	return strconv.Itoa(width) + "x" + strconv.Itoa(height)
}

// EncodeRequest serializes req into the device→host frame a real device
// would have sent to produce it. It is the inverse of ReadRequest/
// decodeBody and exists for the round-trip property this protocol
// promises, and for test harnesses that stand in for a physical device
// (see the transport package's PTY-backed fixture).
func EncodeRequest(req *request.Request) ([]byte, error) {
	code, body, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	rawCode := byte(code)
	if req.Kind == request.KindInput && !req.ResponseExpected {
		rawCode |= responseExpectedMask
	}
	header := make([]byte, headerBytes+len(body))
	header[0] = rawCode
	binary.LittleEndian.PutUint32(header[codeBytes:codeBytes+timestampBytes], uint32(req.Timestamp/timeunit.Millisecond))
	binary.LittleEndian.PutUint16(header[codeBytes+timestampBytes:headerBytes], uint16(len(body)))
	copy(header[headerBytes:], body)
	return header, nil
}

func encodeBody(req *request.Request) (messageCode, []byte, error) {
	switch req.DataType {
	case request.InitEvent:
		return codeInit, nil, nil
	case request.PrintEvent:
		return codePrint, []byte(req.Text), nil
	case request.GPSEvent:
		return codeGpsFix, nil, nil
	case request.WifiRequestEvent:
		return codeWifiReq, nil, nil
	case request.WifiResponseEvent:
		return codeWifiResp, nil, nil

	case request.DigitalRead:
		pin, err := parsePin(req.Channels)
		if err != nil {
			return 0, nil, err
		}
		return codeDigitalRead, append([]byte{pin}, encodeGenericInput(req, false)...), nil

	case request.AnalogRead:
		pin, err := parsePin(req.Channels)
		if err != nil {
			return 0, nil, err
		}
		return codeAnalogRead, append([]byte{pin}, encodeGenericInput(req, true)...), nil

	case request.Accelerometer:
		return codeImuAcc, encodeGenericInput(req, true), nil
	case request.Gyroscope:
		return codeImuGyro, encodeGenericInput(req, true), nil
	case request.Magnetometer:
		return codeImuMag, encodeGenericInput(req, true), nil

	case request.DigitalWrite:
		pin, err := parsePin(req.Channels)
		if err != nil {
			return 0, nil, err
		}
		v, _ := req.Values[0].(sequence.Int)
		return codeDigitalWrite, []byte{pin, byte(v)}, nil

	case request.AnalogWrite:
		pin, err := parsePin(req.Channels)
		if err != nil {
			return 0, nil, err
		}
		body := make([]byte, 0, 1+analogParamsSize+4)
		body = append(body, pin)
		body = append(body, encodeAnalogParams(*req.Analog)...)
		bin := req.Analog.ToDigital(floatValue(req.Values[0]))
		tail := make([]byte, 4)
		binary.LittleEndian.PutUint32(tail, uint32(bin))
		body = append(body, tail...)
		return codeAnalogWrite, body, nil

	case request.ScreenInit:
		w, h := parseScreenShape(req.Text)
		return codeScreenInit, []byte{byte(w / 8), byte(h / 8)}, nil

	case request.ScreenFull:
		buf, _ := req.Values[0].(*screen.Buffer)
		return codeScreenFull, encodeScreenFull(buf), nil

	case request.ScreenTile:
		// ScreenTile requests carry the whole repainted buffer (as
		// decoded), not the originating single-tile patch; the patch
		// itself isn't recoverable from a Request alone.
		return 0, nil, errScreenTileNotEncodable

	default:
		return 0, nil, errUnknownDataType
	}
}

func encodeGenericInput(req *request.Request, isAnalog bool) []byte {
	var flags byte
	if req.Values != nil {
		flags |= 0x1
	}
	if req.Batch.Num > 1 {
		flags |= 0x2
	}
	body := []byte{flags}
	if isAnalog {
		body = append(body, encodeAnalogParams(*req.Analog)...)
	}
	if req.Batch.Num > 1 {
		batch := make([]byte, batchParamsSize)
		binary.LittleEndian.PutUint16(batch[0:2], uint16(req.Batch.Num))
		binary.LittleEndian.PutUint32(batch[2:6], uint32(req.Batch.Period*1000))
		body = append(body, batch...)
	}
	if req.Values != nil {
		for _, v := range req.Values {
			if isAnalog {
				bin := req.Analog.ToDigital(floatValue(v))
				b := make([]byte, 4)
				binary.LittleEndian.PutUint32(b, uint32(bin))
				body = append(body, b...)
			} else {
				n, _ := v.(sequence.Int)
				body = append(body, byte(n))
			}
		}
	}
	return body
}

func encodeScreenFull(buf *screen.Buffer) []byte {
	tileW, tileH := buf.Width()/8, buf.Height()/8
	out := make([]byte, 8*tileW*tileH)
	for wireRow := 0; wireRow < tileH; wireRow++ {
		screenRow := tileH - 1 - wireRow
		for tx := 0; tx < tileW; tx++ {
			off := (wireRow*tileW + tx) * 8
			for col := 0; col < 8; col++ {
				var b byte
				for row := 0; row < 8; row++ {
					if buf.At(tx*8+col, screenRow*8+row) {
						b |= 1 << uint(7-row)
					}
				}
				// Tile.Pixel reads column col from byte index 7-col.
				out[off+(7-col)] = b
			}
		}
	}
	return out
}

func floatValue(v sequence.Value) float64 {
	switch t := v.(type) {
	case sequence.Float:
		return float64(t)
	case sequence.Int:
		return float64(t)
	default:
		return 0
	}
}

func parsePin(channels []string) (byte, error) {
	if len(channels) != 1 {
		return 0, errBadPinChannel
	}
	n, err := strconv.Atoi(channels[0])
	if err != nil || n < 0 || n > 255 {
		return 0, errBadPinChannel
	}
	return byte(n), nil
}

func parseScreenShape(text string) (int, int) {
	parts := []rune(text)
	for i, r := range parts {
		if r == 'x' {
			w, _ := strconv.Atoi(text[:i])
			h, _ := strconv.Atoi(text[i+1:])
			return w, h
		}
	}
	return 0, 0
}
