// Package session drives a single record-or-replay conversation with a
// device: read one request, update all owned state, write one response,
// repeat. This is strictly single-threaded with exactly two suspension
// points (the transport read and the transport write); there is no
// internal parallelism and no shared mutable state between iterations
// beyond the RequestLog being built.
package session

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kwashburn/micrograder/internal/codec"
	"github.com/kwashburn/micrograder/internal/handler"
	"github.com/kwashburn/micrograder/internal/requestlog"
	"github.com/kwashburn/micrograder/internal/transport"
)

// Driver owns the transport and the codec for exactly one session and
// feeds every decoded request to a RequestHandler, logging each request
// as it arrives.
type Driver struct {
	Port    transport.Port
	Codec   *codec.Codec
	Handler *handler.RequestHandler
	Log     *requestlog.RequestLog
	Logger  *log.Logger

	// ReadTimeout bounds every request read; zero blocks indefinitely.
	ReadTimeout time.Duration
}

// New builds a Driver. logger may be nil, in which case a discarding
// logger is used (matching charmbracelet/log's default when no output
// is configured).
func New(port transport.Port, h *handler.RequestHandler, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Driver{
		Port:    port,
		Codec:   codec.New(),
		Handler: h,
		Log:     requestlog.New(),
		Logger:  logger,
	}
}

// Run executes the read-update-write loop until a read timeout, a
// Complete response, or a transport error ends the session. It always
// returns the log accumulated so far; the returned error is nil unless
// the transport failed in a way other than the ordinary end-of-session
// timeout (io.EOF), so callers can distinguish "session ended normally"
// from "something broke."
func (d *Driver) Run() (*requestlog.RequestLog, error) {
	if d.ReadTimeout > 0 {
		if err := d.Port.SetReadTimeout(d.ReadTimeout); err != nil {
			return d.Log, err
		}
	}

	for {
		req, err := d.Codec.ReadRequest(d.Port)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.Logger.Debug("session ended", "reason", "read timeout")
				return d.Log, nil
			}
			d.Logger.Error("transport read failed", "err", err)
			return d.Log, err
		}

		d.Logger.Debug("request", "kind", req.Kind, "dataType", req.DataType, "ts", req.Timestamp)
		d.Log.Append(req)

		resp := d.Handler.Process(req)
		if err := codec.WriteResponse(d.Port, resp); err != nil {
			d.Logger.Error("transport write failed", "err", err)
			return d.Log, err
		}

		if resp.Complete {
			d.Logger.Debug("session ended", "reason", "complete response", "kind", resp.Kind)
			return d.Log, nil
		}
	}
}
