package geo

import (
	orbgeo "github.com/paulmach/orb/geo"

	"github.com/paulmach/orb"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
)

// CalculateHaversineDistance returns the great-circle distance between two
// coordinates in kilometers.
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{longOne, latOne}, orb.Point{longTwo, latTwo}) / 1000.0
}

// PolylineLength returns the length of a lat/lng polyline in meters.
func PolylineLength(shape []datastructure.Coordinate) float64 {
	length := 0.0
	for i := 1; i < len(shape); i++ {
		length += orbgeo.DistanceHaversine(
			orb.Point{shape[i-1].GetLon(), shape[i-1].GetLat()},
			orb.Point{shape[i].GetLon(), shape[i].GetLat()},
		)
	}
	return length
}
