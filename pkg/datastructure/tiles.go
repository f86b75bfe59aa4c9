package datastructure

import (
	"math"

	"github.com/golang/geo/s2"
)

// Tiles is the fixed world grid at one hierarchy level: degree-aligned
// square cells covering [-90,90] x [-180,180), numbered row major from the
// south west corner.
type Tiles struct {
	tileSize float64
	ncols    uint32
	nrows    uint32
}

func NewTiles(tileSize float64) *Tiles {
	return &Tiles{
		tileSize: tileSize,
		ncols:    uint32(math.Ceil(360.0 / tileSize)),
		nrows:    uint32(math.Ceil(180.0 / tileSize)),
	}
}

func (t *Tiles) TileCount() uint32 {
	return t.ncols * t.nrows
}

func (t *Tiles) TileSize() float64 {
	return t.tileSize
}

// TileID maps a coordinate to its grid cell. Out of range coordinates are
// normalized onto the sphere first so a slightly off dump cannot index past
// the grid.
func (t *Tiles) TileID(lat, lon float64) uint32 {
	ll := s2.LatLngFromDegrees(lat, lon).Normalized()
	lat, lon = ll.Lat.Degrees(), ll.Lng.Degrees()

	row := uint32((lat + 90.0) / t.tileSize)
	if row >= t.nrows {
		row = t.nrows - 1
	}
	col := uint32((lon + 180.0) / t.tileSize)
	if col >= t.ncols {
		col = t.ncols - 1
	}
	return row*t.ncols + col
}

// BaseLatLon returns the south west corner of a tile.
func (t *Tiles) BaseLatLon(tileID uint32) (float64, float64) {
	row := tileID / t.ncols
	col := tileID % t.ncols
	return float64(row)*t.tileSize - 90.0, float64(col)*t.tileSize - 180.0
}
