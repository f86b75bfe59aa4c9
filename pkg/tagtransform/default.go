package tagtransform

import (
	"strconv"
	"strings"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg"
)

// DefaultTransform is the built-in routing tag policy. It reduces the raw
// osm tag soup to the normalized keys the graph builder interprets:
// integer codes for road_class and use, "true"/"false" access and attribute
// flags, speed in kph and the street name set.
type DefaultTransform struct{}

func NewDefaultTransform() *DefaultTransform {
	return &DefaultTransform{}
}

// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
var acceptedHighway = map[string]pkg.RoadClass{
	"motorway":         pkg.ROAD_CLASS_MOTORWAY,
	"motorway_link":    pkg.ROAD_CLASS_MOTORWAY,
	"trunk":            pkg.ROAD_CLASS_TRUNK,
	"trunk_link":       pkg.ROAD_CLASS_TRUNK,
	"primary":          pkg.ROAD_CLASS_PRIMARY,
	"primary_link":     pkg.ROAD_CLASS_PRIMARY,
	"secondary":        pkg.ROAD_CLASS_TERTIARY_UNCLASSIFIED,
	"secondary_link":   pkg.ROAD_CLASS_TERTIARY_UNCLASSIFIED,
	"tertiary":         pkg.ROAD_CLASS_TERTIARY_UNCLASSIFIED,
	"tertiary_link":    pkg.ROAD_CLASS_TERTIARY_UNCLASSIFIED,
	"unclassified":     pkg.ROAD_CLASS_TERTIARY_UNCLASSIFIED,
	"road":             pkg.ROAD_CLASS_TERTIARY_UNCLASSIFIED,
	"residential":      pkg.ROAD_CLASS_RESIDENTIAL,
	"residential_link": pkg.ROAD_CLASS_RESIDENTIAL,
	"living_street":    pkg.ROAD_CLASS_RESIDENTIAL,
	"service":          pkg.ROAD_CLASS_SERVICE,
	"track":            pkg.ROAD_CLASS_TRACK,
	"cycleway":         pkg.ROAD_CLASS_OTHER,
	"steps":            pkg.ROAD_CLASS_OTHER,
	"motorroad":        pkg.ROAD_CLASS_OTHER,
}

var defaultSpeedKPH = map[string]float64{
	"motorway":       100,
	"motorway_link":  70,
	"trunk":          70,
	"trunk_link":     65,
	"primary":        65,
	"primary_link":   60,
	"secondary":      60,
	"secondary_link": 50,
	"tertiary":       50,
	"tertiary_link":  40,
	"unclassified":   40,
	"residential":    30,
	"living_street":  5,
	"road":           20,
	"service":        20,
	"track":          15,
	"motorroad":      90,
}

var unpavedSurface = map[string]struct{}{
	"unpaved":     {},
	"dirt":        {},
	"gravel":      {},
	"fine_gravel": {},
	"compacted":   {},
	"ground":      {},
	"grass":       {},
	"sand":        {},
	"mud":         {},
	"earth":       {},
}

// https://wiki.openstreetmap.org/wiki/Key:barrier
var gateBarrier = map[string]struct{}{
	"gate":       {},
	"lift_gate":  {},
	"swing_gate": {},
}

var bollardBarrier = map[string]struct{}{
	"bollard":        {},
	"block":          {},
	"jersey_barrier": {},
}

// name keys copied through in the order the tile writer pools them.
var nameKeys = []string{
	"name", "name:en", "alt_name", "official_name", "ref", "int_ref",
	"destination", "destination:ref", "destination:ref:to", "junction_ref",
}

const (
	modeAuto       = 1
	modeBike       = 2
	modePedestrian = 4
)

func isRestricted(value string) bool {
	return value == "no" || value == "restricted"
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// parseSpeed handles "50", "30 mph" and "5 knots" values; unitless values
// are assumed kph. Returns 0 when the value cannot be used.
func parseSpeed(value string) float64 {
	factor := 1.0
	switch {
	case strings.Contains(value, "mph"):
		value = strings.TrimSpace(strings.Replace(value, "mph", "", -1))
		factor = 1.60934
	case strings.Contains(value, "km/h"):
		value = strings.TrimSpace(strings.Replace(value, "km/h", "", -1))
	case strings.Contains(value, "knots"):
		value = strings.TrimSpace(strings.Replace(value, "knots", "", -1))
		factor = 1.852
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return speed * factor
}

func wayUse(tags map[string]string) pkg.Use {
	switch tags["highway"] {
	case "cycleway":
		return pkg.USE_CYCLEWAY
	case "steps":
		return pkg.USE_STEPS
	}
	switch tags["service"] {
	case "parking_aisle":
		return pkg.USE_PARKING_AISLE
	case "driveway":
		return pkg.USE_DRIVEWAY
	case "alley":
		return pkg.USE_ALLEY
	case "emergency_access":
		return pkg.USE_EMERGENCY_ACCESS
	case "drive-through", "drive_through":
		return pkg.USE_DRIVE_THRU
	}
	return pkg.USE_NONE
}

func (t *DefaultTransform) TransformWay(tags map[string]string) (map[string]string, error) {
	highway := tags["highway"]
	roadClass, routable := acceptedHighway[highway]
	ferry := tags["route"] == "ferry"
	if !routable && !ferry && tags["junction"] == "" {
		return nil, nil
	}
	if !routable {
		roadClass = pkg.ROAD_CLASS_OTHER
	}

	out := make(map[string]string, 24)
	out["road_class"] = strconv.Itoa(int(roadClass))
	out["use"] = strconv.Itoa(int(wayUse(tags)))
	out["link"] = boolTag(strings.HasSuffix(highway, "_link"))

	// oneway handling, including reversed oneways and per-direction vehicle
	// restrictions
	onewayTag := tags["oneway"]
	reversed := onewayTag == "-1" ||
		isRestricted(tags["vehicle:forward"]) || isRestricted(tags["motor_vehicle:forward"])
	roundabout := tags["junction"] == "roundabout"
	oneway := onewayTag == "yes" || onewayTag == "true" || onewayTag == "1" ||
		reversed || roundabout ||
		isRestricted(tags["vehicle:backward"]) || isRestricted(tags["motor_vehicle:backward"])

	auto := highway != "cycleway" && highway != "steps" &&
		!isRestricted(tags["motor_vehicle"]) && !isRestricted(tags["motorcar"])
	bike := highway != "motorway" && highway != "motorway_link" &&
		tags["bicycle"] != "no"
	pedestrian := highway != "motorway" && highway != "motorway_link" &&
		highway != "trunk" && highway != "trunk_link" && tags["foot"] != "no"

	autoForward, autoBackward := auto, auto
	bikeForward, bikeBackward := bike, bike
	if oneway {
		if reversed {
			autoForward, bikeForward = false, false
		} else {
			autoBackward, bikeBackward = false, false
		}
	}
	out["auto_forward"] = boolTag(autoForward)
	out["auto_backward"] = boolTag(autoBackward)
	out["bike_forward"] = boolTag(bikeForward)
	out["bike_backward"] = boolTag(bikeBackward)
	out["pedestrian"] = boolTag(pedestrian)

	out["oneway"] = boolTag(oneway)
	out["roundabout"] = boolTag(roundabout)
	out["ferry"] = boolTag(ferry)
	out["rail"] = boolTag(tags["route"] == "shuttle_train")
	out["tunnel"] = boolTag(tags["tunnel"] == "yes")
	out["bridge"] = boolTag(tags["bridge"] == "yes")
	out["toll"] = boolTag(tags["toll"] == "yes")

	if _, unpaved := unpavedSurface[tags["surface"]]; unpaved {
		out["surface"] = "true"
	}
	if access := tags["access"]; access == "private" || access == "no" {
		out["private"] = "true"
	}
	if tags["access"] == "destination" {
		out["no_thru_traffic_"] = "true"
	}

	speed := parseSpeed(tags["maxspeed"])
	if speed == 0 {
		speed = defaultSpeedKPH[highway]
	}
	if speed == 0 {
		speed = 30
	}
	out["speed"] = strconv.FormatFloat(speed, 'f', -1, 64)

	if lanes, err := strconv.Atoi(tags["lanes"]); err == nil {
		out["lanes"] = strconv.Itoa(lanes)
	}

	bikeNetwork := 0
	if tags["ncn"] == "yes" {
		bikeNetwork |= 1
	}
	if tags["rcn"] == "yes" {
		bikeNetwork |= 2
	}
	if tags["lcn"] == "yes" {
		bikeNetwork |= 4
	}
	if bikeNetwork != 0 {
		out["bike_network_mask"] = strconv.Itoa(bikeNetwork)
	}
	if ref := tags["ncn_ref"]; ref != "" {
		out["bike_national_ref"] = ref
	}
	if ref := tags["rcn_ref"]; ref != "" {
		out["bike_regional_ref"] = ref
	}
	if ref := tags["lcn_ref"]; ref != "" {
		out["bike_local_ref"] = ref
	}

	for _, key := range nameKeys {
		if value := tags[key]; value != "" {
			out[key] = value
		}
	}

	return out, nil
}

func (t *DefaultTransform) TransformNode(tags map[string]string) (map[string]string, error) {
	out := make(map[string]string, 4)

	modes := modeAuto | modeBike | modePedestrian
	barrier := tags["barrier"]
	if _, ok := gateBarrier[barrier]; ok {
		out["gate"] = "true"
		if tags["access"] == "no" {
			modes = 0
		}
	}
	if _, ok := bollardBarrier[barrier]; ok {
		out["bollard"] = "true"
		// bollards stop cars, not bikes or pedestrians
		modes = modeBike | modePedestrian
	}
	out["modes_mask"] = strconv.Itoa(modes)

	if exitTo := tags["exit_to"]; exitTo != "" {
		out["exit_to"] = exitTo
	}
	if ref := tags["ref"]; ref != "" {
		out["ref"] = ref
	}
	return out, nil
}
