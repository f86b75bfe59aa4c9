package pkg

// RoadClass codes match what the tag transform emits and what the tile
// consumer stores, most important first.
type RoadClass uint8

const (
	ROAD_CLASS_MOTORWAY RoadClass = iota
	ROAD_CLASS_TRUNK
	ROAD_CLASS_PRIMARY
	ROAD_CLASS_TERTIARY_UNCLASSIFIED
	ROAD_CLASS_RESIDENTIAL
	ROAD_CLASS_SERVICE
	ROAD_CLASS_TRACK
	ROAD_CLASS_OTHER
)

func (r RoadClass) String() string {
	return [...]string{"motorway", "trunk", "primary", "tertiary_unclassified",
		"residential", "service", "track", "other"}[r]
}

// Use refines the road class for special purpose ways.
type Use uint8

const (
	USE_NONE Use = iota
	USE_CYCLEWAY
	USE_PARKING_AISLE
	USE_DRIVEWAY
	USE_ALLEY
	USE_EMERGENCY_ACCESS
	USE_DRIVE_THRU
	USE_STEPS
	USE_OTHER
)

func (u Use) String() string {
	return [...]string{"none", "cycleway", "parking_aisle", "driveway", "alley",
		"emergency_access", "drive_thru", "steps", "other"}[u]
}
