package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilePixelDecoding(t *testing.T) {
	// Left column (x=0) and bottom row (y=7) lit.
	tile := Tile{0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0xFF}
	for y := 0; y < 8; y++ {
		assert.True(t, tile.Pixel(0, y), "column 0 should be fully lit at row %d", y)
	}
	for x := 0; x < 7; x++ {
		assert.True(t, tile.Pixel(x, 7), "bottom row should be fully lit at col %d", x)
	}
	assert.False(t, tile.Pixel(1, 0))
}

func TestPaintTileClips(t *testing.T) {
	buf := NewBuffer(8, 8)
	var t1 Tile
	for i := range t1 {
		t1[i] = 0xFF
	}
	buf.PaintTile(t1, 4, 4) // half off the right/bottom edge
	assert.True(t, buf.At(7, 7))
	assert.False(t, buf.At(0, 0))
}

func TestBufferEqualAndCopy(t *testing.T) {
	a := NewBuffer(8, 8)
	a.PaintTile(Tile{0xFF, 0, 0, 0, 0, 0, 0, 0}, 0, 0)
	b := a.Copy()
	assert.True(t, a.Equal(b))
	b.PaintTile(Tile{0, 0, 0, 0, 0, 0, 0, 0}, 0, 0)
	assert.False(t, a.Equal(b))
}

func TestDecodeFullBottomToTop(t *testing.T) {
	// 1x2 tiles (8x16 px). Wire order is bottom row first.
	bottomTile := Tile{0, 0, 0, 0, 0, 0, 0, 0xFF}
	topTile := Tile{0, 0, 0, 0, 0, 0, 0, 0}
	body := append(append([]byte{}, bottomTile[:]...), topTile[:]...)

	buf, err := DecodeFull(1, 2, body)
	require.NoError(t, err)
	assert.Equal(t, 8, buf.Width())
	assert.Equal(t, 16, buf.Height())
	assert.True(t, buf.At(0, 8), "bottom tile's column 0 should land in the bottom screen row")
	assert.False(t, buf.At(0, 0), "top tile was all-unlit")
}

func TestDecodeFullRejectsBadLength(t *testing.T) {
	_, err := DecodeFull(2, 2, []byte{1, 2, 3})
	require.Error(t, err)
}
