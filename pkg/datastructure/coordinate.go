package datastructure

type Coordinate struct {
	lat float64
	lon float64
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		lat: lat,
		lon: lon,
	}
}

func (c Coordinate) GetLat() float64 {
	return c.lat
}

func (c Coordinate) GetLon() float64 {
	return c.lon
}
