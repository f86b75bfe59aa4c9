package graphbuilder

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/concurrent"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/geo"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/tile"
)

// nodePair is the canonicalized endpoint pair keying EdgeInfo records: both
// directed sides of an undirected edge share one payload.
type nodePair struct {
	a datastructure.GraphId
	b datastructure.GraphId
}

func computeNodePair(nodeA, nodeB datastructure.GraphId) nodePair {
	if nodeA < nodeB {
		return nodePair{a: nodeA, b: nodeB}
	}
	return nodePair{a: nodeB, b: nodeA}
}

type ManifestEntry struct {
	TileID        uint32
	Nodes         uint32
	DirectedEdges uint32
	Bytes         int64
}

type tileSetResult struct {
	written int64
	entries []ManifestEntry
	err     error
}

// buildLocalTiles fans the worker tasks out to the pool and joins them all
// before surfacing any failure, so one bad tile does not abandon the other
// workers' in-flight writes.
func (b *GraphBuilder) buildLocalTiles(level uint8) ([]ManifestEntry, error) {
	pool := concurrent.NewWorkerPool[[]*tileBucket, tileSetResult](len(b.tasks), len(b.tasks))
	pool.Start(b.buildTileSet)
	for _, task := range b.tasks {
		pool.AddJob(task)
	}
	pool.Close()
	pool.Wait()

	var (
		entries []ManifestEntry
		allErr  error
	)
	for result := range pool.CollectResults() {
		allErr = multierr.Append(allErr, result.err)
		entries = append(entries, result.entries...)
	}
	return entries, allErr
}

// buildTileSet writes every tile of one worker task. The first failed tile
// is terminal for this worker; the other workers keep going.
func (b *GraphBuilder) buildTileSet(workerID int, task []*tileBucket) tileSetResult {
	b.log.Sugar().Infof("worker %d started with %d tiles", workerID, len(task))

	result := tileSetResult{}
	for _, bucket := range task {
		if len(bucket.nodeIDs) == 0 {
			continue
		}
		tileBase := b.nodes[bucket.nodeIDs[0]].GraphId.TileBase()

		entry, err := b.buildTile(bucket, tileBase)
		if err != nil {
			result.err = errors.Wrapf(err, "worker %d failed tile %s", workerID, tileBase)
			b.log.Sugar().Errorf("worker %d failed tile %s: %v", workerID, tileBase, err)
			return result
		}
		result.written += entry.Bytes
		result.entries = append(result.entries, entry)
		b.log.Sugar().Debugf("worker %d wrote tile %s: %d bytes", workerID, tileBase, entry.Bytes)
	}
	b.log.Sugar().Infof("worker %d wrote %d bytes", workerID, result.written)
	return result
}

func (b *GraphBuilder) buildTile(bucket *tileBucket, tileBase datastructure.GraphId) (ManifestEntry, error) {
	graphtile := tile.NewGraphTileBuilder()

	edgeInfoOffset := uint32(0)
	edgeOffsetMap := make(map[nodePair]uint32)
	edgeInfoList := make([]*tile.EdgeInfoBuilder, 0)

	textOffset := uint32(0)
	textOffsetMap := make(map[string]uint32)
	textList := make([]string, 0)

	directedEdgeCount := uint32(0)
	for _, osmID := range bucket.nodeIDs {
		node := b.nodes[osmID]
		nodeBuilder := tile.NodeInfoBuilder{
			Lat:       node.Coord.GetLat(),
			Lng:       node.Coord.GetLon(),
			EdgeIndex: directedEdgeCount,
			EdgeCount: node.EdgeCount(),
		}
		directedEdgeCount += node.EdgeCount()

		directedEdges := make([]tile.DirectedEdgeBuilder, 0, node.EdgeCount())
		for _, edgeIndex := range node.Edges {
			edge := &b.edges[edgeIndex]
			way := &b.ways[edge.WayIndex]

			directedEdge := newDirectedEdge(way)
			directedEdge.Length = float32(geo.PolylineLength(edge.Shape))

			nodeA := b.graphIdOf(edge.SourceNode)
			if !nodeA.IsValid() {
				b.log.Sugar().Errorf("node A: osm id %d graph id is not valid", edge.SourceNode)
			}
			nodeB := b.graphIdOf(edge.TargetNode)
			if !nodeB.IsValid() {
				b.log.Sugar().Errorf("node B: osm id %d graph id is not valid", edge.TargetNode)
			}

			// orientation relative to the node owning this directed edge
			switch osmID {
			case edge.SourceNode:
				directedEdge.ForwardAccess = accessMask(way.AutoForward, way.BikeForward, way.Pedestrian)
				directedEdge.ReverseAccess = accessMask(way.AutoBackward, way.BikeBackward, way.Pedestrian)
				directedEdge.EndNode = nodeB
				directedEdge.OppIndex = uint8(b.findOpposing(edge.TargetNode, edge.SourceNode))
			case edge.TargetNode:
				directedEdge.ForwardAccess = accessMask(way.AutoBackward, way.BikeBackward, way.Pedestrian)
				directedEdge.ReverseAccess = accessMask(way.AutoForward, way.BikeForward, way.Pedestrian)
				directedEdge.EndNode = nodeA
				directedEdge.OppIndex = uint8(b.findOpposing(edge.SourceNode, edge.TargetNode))
			default:
				b.log.Sugar().Errorf("way %d edge %d nodes %d and %d do not match osm node id %d",
					way.OsmID, edgeIndex, edge.SourceNode, edge.TargetNode, osmID)
				continue
			}

			pair := computeNodePair(nodeA, nodeB)
			if existing, ok := edgeOffsetMap[pair]; ok {
				directedEdge.EdgeDataOffset = existing
			} else {
				edgeInfo := tile.NewEdgeInfoBuilder(nodeA, nodeB)
				edgeInfo.SetShape(edge.Shape)

				streetNameOffsets := make([]uint32, 0)
				for _, name := range way.GetNames() {
					if name == "" {
						continue
					}
					if existingText, ok := textOffsetMap[name]; ok {
						streetNameOffsets = append(streetNameOffsets, existingText)
						continue
					}
					textList = append(textList, name)
					streetNameOffsets = append(streetNameOffsets, textOffset)
					textOffsetMap[name] = textOffset
					// cumulative byte position including the NUL terminator
					textOffset += uint32(len(name)) + 1
				}
				edgeInfo.SetStreetNameOffsets(streetNameOffsets)

				edgeOffsetMap[pair] = edgeInfoOffset
				edgeInfoList = append(edgeInfoList, edgeInfo)
				directedEdge.EdgeDataOffset = edgeInfoOffset
				edgeInfoOffset += edgeInfo.SizeOf()
			}

			directedEdges = append(directedEdges, directedEdge)
		}

		graphtile.AddNodeAndDirectedEdges(nodeBuilder, directedEdges)
	}

	graphtile.SetEdgeInfoAndSize(edgeInfoList, edgeInfoOffset)
	graphtile.SetTextListAndSize(textList, textOffset)

	written, err := graphtile.StoreTileData(b.cfg.Mjolnir.TileDir, tileBase)
	if err != nil {
		return ManifestEntry{}, err
	}
	return ManifestEntry{
		TileID:        tileBase.TileID(),
		Nodes:         graphtile.NodeCount(),
		DirectedEdges: graphtile.DirectedEdgeCount(),
		Bytes:         written,
	}, nil
}

// findOpposing locates the directed edge leaving endNode back toward
// startNode and returns its position in endNode's incident edge list. The
// consumer stores the result in a 5 bit field, so a miss returns 31.
func (b *GraphBuilder) findOpposing(endNode, startNode uint64) uint32 {
	if node, ok := b.nodes[endNode]; ok {
		for n, edgeIndex := range node.Edges {
			edge := &b.edges[edgeIndex]
			if (edge.SourceNode == endNode && edge.TargetNode == startNode) ||
				(edge.TargetNode == endNode && edge.SourceNode == startNode) {
				return uint32(n)
			}
		}
	}
	b.log.Sugar().Errorf("opposing directed edge not found at node %d toward %d", endNode, startNode)
	return pkg.INVALID_OPPOSING_INDEX
}

func (b *GraphBuilder) graphIdOf(osmID uint64) datastructure.GraphId {
	if node, ok := b.nodes[osmID]; ok {
		return node.GraphId
	}
	return datastructure.InvalidGraphId
}

func accessMask(auto, bike, pedestrian bool) uint8 {
	mask := uint8(0)
	if auto {
		mask |= tile.ACCESS_AUTO
	}
	if bike {
		mask |= tile.ACCESS_BIKE
	}
	if pedestrian {
		mask |= tile.ACCESS_PEDESTRIAN
	}
	return mask
}

func newDirectedEdge(way *OSMWay) tile.DirectedEdgeBuilder {
	flags := uint16(0)
	set := func(on bool, bit uint16) {
		if on {
			flags |= bit
		}
	}
	set(way.Oneway, tile.FLAG_ONEWAY)
	set(way.Roundabout, tile.FLAG_ROUNDABOUT)
	set(way.Link, tile.FLAG_LINK)
	set(way.Ferry, tile.FLAG_FERRY)
	set(way.Rail, tile.FLAG_RAIL)
	set(way.Tunnel, tile.FLAG_TUNNEL)
	set(way.Bridge, tile.FLAG_BRIDGE)
	set(way.Toll, tile.FLAG_TOLL)
	set(way.Unpaved, tile.FLAG_UNPAVED)
	set(way.DestinationOnly, tile.FLAG_DESTINATION_ONLY)
	set(way.NoThruTraffic, tile.FLAG_NO_THRU_TRAFFIC)

	speed := math.Round(float64(way.Speed))
	if speed > 255 {
		speed = 255
	}
	return tile.DirectedEdgeBuilder{
		RoadClass:   uint8(way.RoadClass),
		Use:         uint8(way.Use),
		Speed:       uint8(speed),
		Lanes:       way.Lanes,
		Flags:       flags,
		BikeNetwork: way.BikeNetwork,
	}
}
