// Package screen models the device's bitmap display: a pixel buffer
// built up from 8x8 tiles, with the equality and copy semantics Sequence
// needs to treat a Buffer as an ordinary value.
package screen

import (
	"fmt"

	"github.com/kwashburn/micrograder/internal/sequence"
)

// Tile is one 8x8 cell of the display, on the wire as 8 bytes where each
// byte is a column and bit 7 (MSB) is that column's top pixel.
type Tile [8]byte

// Pixel reports whether tile column x (0..7, left to right), row y
// (0..7, top to bottom) is lit. Column x is stored at byte index 7-x:
// the wire's first byte is the tile's rightmost column.
func (t Tile) Pixel(x, y int) bool {
	return t[7-x]&(1<<(7-uint(y))) != 0
}

// Buffer is a (width, height) pixel grid, (0,0) at the top-left.
type Buffer struct {
	width, height int
	pixels        []bool // row-major, row 0 = top
}

// NewBuffer returns an all-unlit buffer of the given pixel dimensions.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{width: width, height: height, pixels: make([]bool, width*height)}
}

// FromPixels builds a Buffer directly from a row-major pixel slice, as
// used by the requestlog package's YAML round-trip decoder.
func FromPixels(width, height int, pixels []bool) *Buffer {
	cp := make([]bool, len(pixels))
	copy(cp, pixels)
	return &Buffer{width: width, height: height, pixels: cp}
}

// Pixels returns a copy of the row-major pixel slice.
func (b *Buffer) Pixels() []bool {
	cp := make([]bool, len(b.pixels))
	copy(cp, b.pixels)
	return cp
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

func (b *Buffer) At(x, y int) bool {
	return b.pixels[y*b.width+x]
}

func (b *Buffer) set(x, y int, lit bool) {
	b.pixels[y*b.width+x] = lit
}

// PaintTile overwrites the 8x8 region with top-left corner (x, y).
func (b *Buffer) PaintTile(t Tile, x, y int) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			py, px := y+row, x+col
			if px < 0 || px >= b.width || py < 0 || py >= b.height {
				continue
			}
			b.set(px, py, t.Pixel(col, row))
		}
	}
}

// Equal satisfies sequence.Value: two buffers are equal iff same
// dimensions and identical pixels.
func (b *Buffer) Equal(other sequence.Value) bool {
	o, ok := other.(*Buffer)
	if !ok || o == nil || b.width != o.width || b.height != o.height {
		return false
	}
	for i := range b.pixels {
		if b.pixels[i] != o.pixels[i] {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the buffer.
func (b *Buffer) Copy() *Buffer {
	cp := &Buffer{width: b.width, height: b.height, pixels: make([]bool, len(b.pixels))}
	copy(cp.pixels, b.pixels)
	return cp
}

func (b *Buffer) String() string {
	return fmt.Sprintf("screen.Buffer(%dx%d)", b.width, b.height)
}

// DecodeFull builds a Buffer from a ScreenFull body: tileW*tileH tiles,
// row-major, but with tile rows ordered bottom-to-top in the byte
// stream (the device's own scan order), per the wire format's explicit
// note. Row 0 of the returned Buffer is the top of the screen
// regardless of wire order.
func DecodeFull(tileW, tileH int, body []byte) (*Buffer, error) {
	want := 8 * tileW * tileH
	if len(body) != want {
		return nil, fmt.Errorf("screen: ScreenFull body has %d bytes, want %d", len(body), want)
	}
	buf := NewBuffer(tileW*8, tileH*8)
	for wireRow := 0; wireRow < tileH; wireRow++ {
		screenRow := tileH - 1 - wireRow
		for tx := 0; tx < tileW; tx++ {
			off := (wireRow*tileW + tx) * 8
			var t Tile
			copy(t[:], body[off:off+8])
			buf.PaintTile(t, tx*8, screenRow*8)
		}
	}
	return buf, nil
}
