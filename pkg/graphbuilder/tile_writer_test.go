package graphbuilder

import (
	"bufio"
	"compress/bzip2"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/tile"
)

func assertOpposingSymmetry(t *testing.T, parsed *parsedTile) {
	t.Helper()
	for i, node := range parsed.Nodes {
		self := datastructure.NewGraphId(parsed.TileBase.TileID(), parsed.TileBase.Level(), uint32(i))
		for k := uint32(0); k < node.EdgeCount; k++ {
			directedEdge := parsed.Edges[node.EdgeIndex+k]
			if directedEdge.EndNode.TileBase() != parsed.TileBase {
				continue
			}
			endNode := parsed.Nodes[directedEdge.EndNode.Index()]
			require.Less(t, uint32(directedEdge.OppIndex), endNode.EdgeCount)
			opposing := parsed.Edges[endNode.EdgeIndex+uint32(directedEdge.OppIndex)]
			assert.Equal(t, self, opposing.EndNode, "opposing edge of node %d edge %d", i, k)
		}
	}
}

func TestSingleWayTile(t *testing.T) {
	b, cfg := newTestBuilder(t)
	source := &stubSource{
		ways: []stubWay{{id: 1, tags: routableTags(), refs: []uint64{10, 11, 12}}},
		nodes: []stubNode{
			{id: 10, lat: 0.0, lon: 0.0},
			{id: 11, lat: 0.0, lon: 0.001},
			{id: 12, lat: 0.0, lon: 0.002},
		},
	}
	require.NoError(t, b.Build(context.Background(), source))

	world := datastructure.NewTiles(0.25)
	parsed := readTile(t, cfg.Mjolnir.TileDir, 2, world.TileID(0.0, 0.0))

	// node 11 is interior shape only; 10 and 12 become graph nodes
	require.Len(t, parsed.Nodes, 2)
	require.Len(t, parsed.Edges, 2)
	require.Len(t, parsed.EdgeInfos, 1)

	assert.Equal(t, uint32(0), parsed.Nodes[0].EdgeIndex)
	assert.Equal(t, uint32(1), parsed.Nodes[0].EdgeCount)
	assert.Equal(t, uint32(1), parsed.Nodes[1].EdgeIndex)
	assert.Equal(t, uint32(1), parsed.Nodes[1].EdgeCount)

	// both directed sides share the one EdgeInfo payload
	assert.Equal(t, uint32(0), parsed.Edges[0].EdgeDataOffset)
	assert.Equal(t, uint32(0), parsed.Edges[1].EdgeDataOffset)
	require.Len(t, parsed.EdgeInfos[0].Shape, 3)
	assert.InDelta(t, 0.001, parsed.EdgeInfos[0].Shape[1][1], 1e-5)

	for _, directedEdge := range parsed.Edges {
		assert.Equal(t, uint8(5), directedEdge.RoadClass)
		assert.Equal(t, uint8(20), directedEdge.Speed)
		assert.InDelta(t, 222.6, directedEdge.Length, 1.0)
	}

	assertOpposingSymmetry(t, parsed)
}

func TestTwoWaysCrossing(t *testing.T) {
	b, cfg := newTestBuilder(t)
	source := &stubSource{
		ways: []stubWay{
			{id: 1, tags: routableTags(), refs: []uint64{10, 11, 12}},
			{id: 2, tags: routableTags(), refs: []uint64{20, 11, 22}},
		},
		nodes: []stubNode{
			{id: 10, lat: 0.01, lon: 0.01},
			{id: 11, lat: 0.01, lon: 0.02},
			{id: 12, lat: 0.01, lon: 0.03},
			{id: 20, lat: 0.02, lon: 0.02},
			{id: 22, lat: 0.005, lon: 0.02},
		},
	}
	require.NoError(t, b.Build(context.Background(), source))

	world := datastructure.NewTiles(0.25)
	parsed := readTile(t, cfg.Mjolnir.TileDir, 2, world.TileID(0.01, 0.01))

	require.Len(t, parsed.Nodes, 5)
	require.Len(t, parsed.Edges, 8)
	assert.Len(t, parsed.EdgeInfos, 4)

	// bucket order is ascending osm id, so node 11 is the second record
	assert.Equal(t, uint32(4), parsed.Nodes[1].EdgeCount)

	assertOpposingSymmetry(t, parsed)
}

func TestNameDeduplication(t *testing.T) {
	b, cfg := newTestBuilder(t)
	named := routableTags()
	named["name"] = "Main St"

	source := &stubSource{
		ways: []stubWay{
			{id: 1, tags: named, refs: []uint64{10, 11}},
			{id: 2, tags: named, refs: []uint64{11, 12}},
		},
		nodes: []stubNode{
			{id: 10, lat: 0.01, lon: 0.01},
			{id: 11, lat: 0.01, lon: 0.02},
			{id: 12, lat: 0.01, lon: 0.03},
		},
	}
	require.NoError(t, b.Build(context.Background(), source))

	world := datastructure.NewTiles(0.25)
	parsed := readTile(t, cfg.Mjolnir.TileDir, 2, world.TileID(0.01, 0.01))

	// the pool holds the shared name exactly once
	assert.Equal(t, []byte("Main St\x00"), parsed.Text)

	require.Len(t, parsed.EdgeInfos, 2)
	for _, info := range parsed.EdgeInfos {
		assert.Equal(t, []uint32{0}, info.NameOffsets)
	}
}

func TestOnewayAccess(t *testing.T) {
	b, cfg := newTestBuilder(t)
	source := &stubSource{
		ways: []stubWay{{
			id: 1,
			tags: map[string]string{
				"road_class":    "2",
				"oneway":        "true",
				"auto_forward":  "true",
				"auto_backward": "false",
				"bike_forward":  "true",
				"bike_backward": "false",
				"pedestrian":    "true",
			},
			refs: []uint64{10, 11},
		}},
		nodes: []stubNode{
			{id: 10, lat: 0.01, lon: 0.01},
			{id: 11, lat: 0.01, lon: 0.02},
		},
	}
	require.NoError(t, b.Build(context.Background(), source))

	world := datastructure.NewTiles(0.25)
	parsed := readTile(t, cfg.Mjolnir.TileDir, 2, world.TileID(0.01, 0.01))
	require.Len(t, parsed.Edges, 2)

	forward := parsed.Edges[parsed.Nodes[0].EdgeIndex]
	reverse := parsed.Edges[parsed.Nodes[1].EdgeIndex]

	assert.NotZero(t, forward.ForwardAccess&tile.ACCESS_AUTO)
	assert.Zero(t, forward.ReverseAccess&tile.ACCESS_AUTO)
	assert.Zero(t, reverse.ForwardAccess&tile.ACCESS_AUTO)
	assert.NotZero(t, reverse.ReverseAccess&tile.ACCESS_AUTO)

	// pedestrian access stays symmetric
	for _, directedEdge := range parsed.Edges {
		assert.NotZero(t, directedEdge.ForwardAccess&tile.ACCESS_PEDESTRIAN)
		assert.NotZero(t, directedEdge.ReverseAccess&tile.ACCESS_PEDESTRIAN)
	}

	assert.NotZero(t, forward.Flags&tile.FLAG_ONEWAY)
}

func TestTileBoundarySplit(t *testing.T) {
	b, cfg := newTestBuilder(t)
	source := &stubSource{
		ways: []stubWay{{id: 1, tags: routableTags(), refs: []uint64{10, 11}}},
		nodes: []stubNode{
			{id: 10, lat: 0.1, lon: 0.1},
			{id: 11, lat: 0.3, lon: 0.3},
		},
	}
	require.NoError(t, b.Build(context.Background(), source))

	world := datastructure.NewTiles(0.25)
	tileA := readTile(t, cfg.Mjolnir.TileDir, 2, world.TileID(0.1, 0.1))
	tileB := readTile(t, cfg.Mjolnir.TileDir, 2, world.TileID(0.3, 0.3))

	require.Len(t, tileA.Nodes, 1)
	require.Len(t, tileB.Nodes, 1)
	require.Len(t, tileA.Edges, 1)
	require.Len(t, tileB.Edges, 1)

	idA := datastructure.NewGraphId(world.TileID(0.1, 0.1), 2, 0)
	idB := datastructure.NewGraphId(world.TileID(0.3, 0.3), 2, 0)

	assert.Equal(t, idB, tileA.Edges[0].EndNode)
	assert.Equal(t, idA, tileB.Edges[0].EndNode)
	assert.Equal(t, uint8(0), tileA.Edges[0].OppIndex)
	assert.Equal(t, uint8(0), tileB.Edges[0].OppIndex)
}

func TestManifestWritten(t *testing.T) {
	b, cfg := newTestBuilder(t)
	source := &stubSource{
		ways: []stubWay{{id: 1, tags: routableTags(), refs: []uint64{10, 11}}},
		nodes: []stubNode{
			{id: 10, lat: 0.01, lon: 0.01},
			{id: 11, lat: 0.01, lon: 0.02},
		},
	}
	require.NoError(t, b.Build(context.Background(), source))

	f, err := os.Open(filepath.Join(cfg.Mjolnir.TileDir, "manifest.txt.bz2"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(bzip2.NewReader(f))
	require.True(t, scanner.Scan())
	assert.Equal(t, fmt.Sprintf("%d %d %d", 1, 2, 1), scanner.Text())
	require.True(t, scanner.Scan())

	var tileID, nodes, edges, bytes int
	_, err = fmt.Sscanf(scanner.Text(), "%d %d %d %d", &tileID, &nodes, &edges, &bytes)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 2, edges)
	assert.Greater(t, bytes, 0)
}
