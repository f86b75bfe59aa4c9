package graphbuilder

import (
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
)

// OSMNode is a node kept because at least one routable way references it.
// Edges holds the indexes of incident edges in insertion order; the graph id
// is assigned during tiling and stays invalid for shape-only nodes.
type OSMNode struct {
	Coord     datastructure.Coordinate
	ExitTo    bool
	Ref       bool
	Gate      bool
	Bollard   bool
	ModesMask uint8
	Edges     []uint32
	GraphId   datastructure.GraphId
}

func NewOSMNode(lat, lng float64) *OSMNode {
	return &OSMNode{
		Coord:   datastructure.NewCoordinate(lat, lng),
		GraphId: datastructure.InvalidGraphId,
	}
}

func (n *OSMNode) AddEdge(edgeIndex uint32) {
	n.Edges = append(n.Edges, edgeIndex)
}

func (n *OSMNode) EdgeCount() uint32 {
	return uint32(len(n.Edges))
}

// OSMWay carries the routing attributes of one routable way, decoded from
// the transformed tag set.
type OSMWay struct {
	OsmID uint64
	Nodes []uint64

	RoadClass pkg.RoadClass
	Use       pkg.Use
	Speed     float32
	Lanes     uint8

	AutoForward  bool
	AutoBackward bool
	BikeForward  bool
	BikeBackward bool
	Pedestrian   bool

	Oneway          bool
	Roundabout      bool
	Link            bool
	Ferry           bool
	Rail            bool
	Tunnel          bool
	Bridge          bool
	Toll            bool
	Unpaved         bool
	DestinationOnly bool
	NoThruTraffic   bool

	BikeNetwork     uint8
	BikeNationalRef string
	BikeRegionalRef string
	BikeLocalRef    string

	Name             string
	NameEn           string
	AltName          string
	OfficialName     string
	Ref              string
	IntRef           string
	Destination      string
	DestinationRef   string
	DestinationRefTo string
	JunctionRef      string
}

// GetNames lists the street name strings in the order the tile text pool
// stores them. Empty entries are skipped by the writer.
func (w *OSMWay) GetNames() []string {
	return []string{
		w.Name, w.NameEn, w.AltName, w.OfficialName, w.Ref, w.IntRef,
		w.Destination, w.DestinationRef, w.DestinationRefTo, w.JunctionRef,
	}
}

// Edge is a way segment between two intersection nodes, directionless until
// the tile writer materializes both sides. Shape includes both endpoints.
type Edge struct {
	SourceNode uint64
	TargetNode uint64
	WayIndex   uint32
	Shape      []datastructure.Coordinate
}

func NewEdge(sourceNode uint64, wayIndex uint32, firstPoint datastructure.Coordinate) Edge {
	return Edge{
		SourceNode: sourceNode,
		WayIndex:   wayIndex,
		Shape:      []datastructure.Coordinate{firstPoint},
	}
}

func (e *Edge) AddLL(point datastructure.Coordinate) {
	e.Shape = append(e.Shape, point)
}
