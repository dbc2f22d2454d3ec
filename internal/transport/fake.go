package transport

import (
	"os"
	"time"

	"github.com/creack/pty"
)

// filePort adapts an *os.File (one end of a PTY pair) to Port, for
// tests that stand in for a physical serial device.
type filePort struct {
	f *os.File
}

func (p *filePort) Read(b []byte) (int, error)  { return readOrTimeout(p.f, b) }
func (p *filePort) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *filePort) Close() error                { return p.f.Close() }

func (p *filePort) SetReadTimeout(d time.Duration) error {
	return setVTime(int(p.f.Fd()), d)
}

// NewFakePair opens a PTY and returns the host-facing Port (as the
// session driver would use a real serial port) paired with the raw
// device-side file a test can write device frames into and read
// responses back from, with no real hardware involved.
func NewFakePair() (host Port, device *os.File, err error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, err
	}
	return &filePort{f: master}, slave, nil
}
