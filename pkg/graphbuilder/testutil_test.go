package graphbuilder

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/config"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/osmparser"
)

type stubWay struct {
	id   uint64
	tags map[string]string
	refs []uint64
}

type stubNode struct {
	id       uint64
	lat, lon float64
	tags     map[string]string
}

// stubSource feeds literal entities through the same callbacks the pbf
// reader drives.
type stubSource struct {
	ways  []stubWay
	nodes []stubNode
}

func (s *stubSource) ScanWays(ctx context.Context, handle osmparser.WayHandler) error {
	for _, way := range s.ways {
		if err := handle(way.id, way.tags, way.refs); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubSource) ScanNodes(ctx context.Context, handle osmparser.NodeHandler) error {
	for _, node := range s.nodes {
		if err := handle(node.id, node.lon, node.lat, node.tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubSource) ScanRelations(ctx context.Context, handle osmparser.RelationHandler) error {
	return nil
}

// passTransform hands way tags through untouched so tests control the
// normalized keys directly, and keeps every node.
type passTransform struct{}

func (passTransform) TransformWay(tags map[string]string) (map[string]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

func (passTransform) TransformNode(tags map[string]string) (map[string]string, error) {
	out := map[string]string{"modes_mask": "7"}
	for key, value := range tags {
		out[key] = value
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Mjolnir: config.Mjolnir{
			TileDir:     t.TempDir(),
			Concurrency: 2,
			Levels:      []config.Level{{Level: 2, TileSize: 0.25}},
		},
	}
}

func newTestBuilder(t *testing.T) (*GraphBuilder, *config.Config) {
	cfg := testConfig(t)
	return New(cfg, passTransform{}, zap.NewNop()), cfg
}

func routableTags() map[string]string {
	return map[string]string{
		"road_class":    "5",
		"auto_forward":  "true",
		"auto_backward": "true",
		"bike_forward":  "true",
		"bike_backward": "true",
		"pedestrian":    "true",
		"speed":         "20",
	}
}

// --- binary tile reader mirroring the serialized layout ---

type parsedNode struct {
	Lat, Lng  float64
	EdgeIndex uint32
	EdgeCount uint32
}

type parsedDirectedEdge struct {
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

type parsedEdgeInfo struct {
	Offset      uint32
	NodeA       datastructure.GraphId
	NodeB       datastructure.GraphId
	NameOffsets []uint32
	Shape       [][]float64
}

type parsedTile struct {
	TileBase  datastructure.GraphId
	Nodes     []parsedNode
	Edges     []parsedDirectedEdge
	EdgeInfos []parsedEdgeInfo
	Text      []byte
}

func (p *parsedTile) edgeInfoAt(offset uint32) *parsedEdgeInfo {
	for i := range p.EdgeInfos {
		if p.EdgeInfos[i].Offset == offset {
			return &p.EdgeInfos[i]
		}
	}
	return nil
}

func readTile(t *testing.T, tileDir string, level uint8, tileID uint32) *parsedTile {
	t.Helper()

	path := filepath.Join(tileDir, fmt.Sprintf("%d", level), fmt.Sprintf("%d.gph", tileID))
	buf, err := os.ReadFile(path)
	require.NoError(t, err)

	le := binary.LittleEndian
	parsed := &parsedTile{TileBase: datastructure.GraphId(le.Uint64(buf[0:]))}
	nodeCount := le.Uint32(buf[8:])
	edgeCount := le.Uint32(buf[12:])
	edgeInfoOffset := le.Uint32(buf[16:])
	edgeInfoSize := le.Uint32(buf[20:])
	textOffset := le.Uint32(buf[24:])
	textSize := le.Uint32(buf[28:])

	cursor := uint32(44)
	for i := uint32(0); i < nodeCount; i++ {
		parsed.Nodes = append(parsed.Nodes, parsedNode{
			Lat:       math.Float64frombits(le.Uint64(buf[cursor:])),
			Lng:       math.Float64frombits(le.Uint64(buf[cursor+8:])),
			EdgeIndex: le.Uint32(buf[cursor+16:]),
			EdgeCount: le.Uint32(buf[cursor+20:]),
		})
		cursor += 24
	}

	require.Equal(t, edgeInfoOffset, cursor+28*edgeCount)
	for i := uint32(0); i < edgeCount; i++ {
		parsed.Edges = append(parsed.Edges, parsedDirectedEdge{
			EndNode:        datastructure.GraphId(le.Uint64(buf[cursor:])),
			EdgeDataOffset: le.Uint32(buf[cursor+8:]),
			Length:         math.Float32frombits(le.Uint32(buf[cursor+12:])),
			RoadClass:      buf[cursor+16],
			Use:            buf[cursor+17],
			Speed:          buf[cursor+18],
			Lanes:          buf[cursor+19],
			ForwardAccess:  buf[cursor+20],
			ReverseAccess:  buf[cursor+21],
			Flags:          le.Uint16(buf[cursor+22:]),
			OppIndex:       buf[cursor+24],
			BikeNetwork:    buf[cursor+25],
		})
		cursor += 28
	}

	for rel := uint32(0); rel < edgeInfoSize; {
		start := edgeInfoOffset + rel
		info := parsedEdgeInfo{
			Offset: rel,
			NodeA:  datastructure.GraphId(le.Uint64(buf[start:])),
			NodeB:  datastructure.GraphId(le.Uint64(buf[start+8:])),
		}
		nameCount := le.Uint32(buf[start+16:])
		shapeLen := le.Uint32(buf[start+20:])
		for n := uint32(0); n < nameCount; n++ {
			info.NameOffsets = append(info.NameOffsets, le.Uint32(buf[start+24+4*n:]))
		}
		shapeBytes := buf[start+24+4*nameCount : start+24+4*nameCount+shapeLen]
		coords, _, err := polyline.DecodeCoords(shapeBytes)
		require.NoError(t, err)
		info.Shape = coords

		parsed.EdgeInfos = append(parsed.EdgeInfos, info)
		rel += 24 + 4*nameCount + shapeLen
	}

	parsed.Text = buf[textOffset : textOffset+textSize]
	return parsed
}
