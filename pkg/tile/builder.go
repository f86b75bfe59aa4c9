package tile

import (
	"github.com/twpayne/go-polyline"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
)

// NodeInfoBuilder accumulates one NodeInfo record: the node position plus
// the window [EdgeIndex, EdgeIndex+EdgeCount) of its directed edges.
type NodeInfoBuilder struct {
	Lat       float64
	Lng       float64
	EdgeIndex uint32
	EdgeCount uint32
}

// DirectedEdge flag bits.
const (
	FLAG_ONEWAY = uint16(1) << iota
	FLAG_ROUNDABOUT
	FLAG_LINK
	FLAG_FERRY
	FLAG_RAIL
	FLAG_TUNNEL
	FLAG_BRIDGE
	FLAG_TOLL
	FLAG_UNPAVED
	FLAG_DESTINATION_ONLY
	FLAG_NO_THRU_TRAFFIC
)

// DirectedEdge access bits, one set per direction of travel.
const (
	ACCESS_AUTO = uint8(1) << iota
	ACCESS_BIKE
	ACCESS_PEDESTRIAN
)

type DirectedEdgeBuilder struct {
	EndNode        datastructure.GraphId
	EdgeDataOffset uint32
	Length         float32
	RoadClass      uint8
	Use            uint8
	Speed          uint8
	Lanes          uint8
	ForwardAccess  uint8
	ReverseAccess  uint8
	Flags          uint16
	OppIndex       uint8
	BikeNetwork    uint8
}

// EdgeInfoBuilder accumulates the shared payload of an undirected edge:
// both end nodes, the polyline-encoded shape and the text pool offsets of
// its street names.
type EdgeInfoBuilder struct {
	nodeA             datastructure.GraphId
	nodeB             datastructure.GraphId
	streetNameOffsets []uint32
	encodedShape      []byte
}

func NewEdgeInfoBuilder(nodeA, nodeB datastructure.GraphId) *EdgeInfoBuilder {
	return &EdgeInfoBuilder{nodeA: nodeA, nodeB: nodeB}
}

func (e *EdgeInfoBuilder) SetShape(shape []datastructure.Coordinate) {
	coords := make([][]float64, len(shape))
	for i, point := range shape {
		coords[i] = []float64{point.GetLat(), point.GetLon()}
	}
	e.encodedShape = polyline.EncodeCoords(coords)
}

func (e *EdgeInfoBuilder) SetStreetNameOffsets(offsets []uint32) {
	e.streetNameOffsets = offsets
}

// SizeOf is the serialized byte size: the fixed part, one u32 per name
// offset and the encoded shape.
func (e *EdgeInfoBuilder) SizeOf() uint32 {
	return edgeInfoFixedSize + 4*uint32(len(e.streetNameOffsets)) + uint32(len(e.encodedShape))
}

// GraphTileBuilder accumulates one tile's sections before serialization.
type GraphTileBuilder struct {
	nodes         []NodeInfoBuilder
	directedEdges []DirectedEdgeBuilder
	edgeInfos     []*EdgeInfoBuilder
	edgeInfoSize  uint32
	textList      []string
	textSize      uint32
}

func NewGraphTileBuilder() *GraphTileBuilder {
	return &GraphTileBuilder{}
}

func (t *GraphTileBuilder) AddNodeAndDirectedEdges(node NodeInfoBuilder, directedEdges []DirectedEdgeBuilder) {
	t.nodes = append(t.nodes, node)
	t.directedEdges = append(t.directedEdges, directedEdges...)
}

func (t *GraphTileBuilder) SetEdgeInfoAndSize(edgeInfos []*EdgeInfoBuilder, size uint32) {
	t.edgeInfos = edgeInfos
	t.edgeInfoSize = size
}

func (t *GraphTileBuilder) SetTextListAndSize(textList []string, size uint32) {
	t.textList = textList
	t.textSize = size
}

func (t *GraphTileBuilder) NodeCount() uint32 {
	return uint32(len(t.nodes))
}

func (t *GraphTileBuilder) DirectedEdgeCount() uint32 {
	return uint32(len(t.directedEdges))
}
