// Package transport owns the physical connection to the device: a
// serial port opened in raw mode, with a read timeout implementing the
// session driver's "two suspension points" contract. Grounded on the
// teacher's term-based serial_port helpers, generalized from a fixed
// global device path to an arbitrary one and wrapped in a small
// interface so tests can substitute a PTY (see NewFakePair in fake.go).
package transport

import (
	"io"
	"time"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// Port is everything the session driver needs from a device connection:
// a timeout-aware reader, a single-call writer, and a close.
type Port interface {
	io.ReadWriteCloser
	// SetReadTimeout bounds every subsequent Read call via the
	// termios VTIME byte-interval timer: a Read that sees no bytes
	// within d returns 0, io.EOF, which the session driver treats as
	// end-of-session per the error taxonomy's transport-failure
	// clause. A zero duration blocks indefinitely.
	SetReadTimeout(d time.Duration) error
}

// serialPort adapts *term.Term to Port, setting the read timeout via
// the raw termios Cc[VTIME] byte rather than relying on a higher-level
// timeout API, since VTIME's resolution is tenths of a second and its
// interaction with VMIN matters for short reads.
type serialPort struct {
	t *term.Term
}

// OpenSerial opens devicename at baud in 8-N-1 raw mode.
func OpenSerial(devicename string, baud int) (Port, error) {
	t, err := term.Open(devicename, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, err
	}
	return &serialPort{t: t}, nil
}

// Read returns io.EOF on a VTIME timeout (zero bytes, no error) rather
// than the ambiguous (0, nil) a raw termios read produces, so callers
// using io.ReadFull never spin against an expired read deadline.
func (p *serialPort) Read(b []byte) (int, error) {
	return readOrTimeout(p.t, b)
}
func (p *serialPort) Write(b []byte) (int, error) { return p.t.Write(b) }
func (p *serialPort) Close() error                { return p.t.Close() }

func (p *serialPort) SetReadTimeout(d time.Duration) error {
	return setVTime(int(p.t.Fd()), d)
}

// setVTime configures VMIN=0, VTIME=deciseconds(d) on fd so a read
// returns as soon as one byte is available, or after the timeout with
// zero bytes if none arrive. A zero duration instead sets VMIN=1,
// VTIME=0 (block until at least one byte arrives, no timeout).
// reader is the subset of *term.Term / *os.File used by readOrTimeout.
type reader interface {
	Read(b []byte) (int, error)
}

// readOrTimeout normalizes a VMIN=0/VTIME-expired read (0 bytes, nil
// error) to io.EOF, so io.ReadFull over a Port never busy-spins against
// an expired deadline and the session driver sees a single consistent
// end-of-session signal.
func readOrTimeout(r reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func setVTime(fd int, d time.Duration) error {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	if d <= 0 {
		t.Cc[unix.VMIN] = 1
		t.Cc[unix.VTIME] = 0
	} else {
		deciseconds := d / (100 * time.Millisecond)
		if deciseconds < 1 {
			deciseconds = 1
		}
		if deciseconds > 255 {
			deciseconds = 255
		}
		t.Cc[unix.VMIN] = 0
		t.Cc[unix.VTIME] = uint8(deciseconds)
	}
	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}
