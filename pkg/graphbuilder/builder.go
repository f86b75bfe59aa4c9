package graphbuilder

import (
	"context"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/config"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/osmparser"
	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/tagtransform"
)

// GraphBuilder ingests a planet dump and writes one binary graph tile per
// populated grid cell of the most detailed hierarchy level.
//
// The passes are strictly ordered: ways (marking node usage), relations
// (reserved), nodes (materializing used nodes), edge segmentation, tiling,
// then the parallel tile writers. Every table is frozen once the writers
// start, so they share read-only state without locks.
type GraphBuilder struct {
	cfg       *config.Config
	transform tagtransform.Transformer
	log       *zap.Logger

	shape        *datastructure.NodeIdTable
	intersection *datastructure.NodeIdTable

	ways  []OSMWay
	nodes map[uint64]*OSMNode
	edges []Edge

	exitToMap map[uint64]string
	refMap    map[uint64]string

	// estimates from the way pass, used only to pre-size tables
	nodeCount uint64
	edgeCount uint64

	tasks [][]*tileBucket
}

type tileBucket struct {
	tileID  uint32
	nodeIDs []uint64
}

func New(cfg *config.Config, transform tagtransform.Transformer, log *zap.Logger) *GraphBuilder {
	return &GraphBuilder{
		cfg:          cfg,
		transform:    transform,
		log:          log,
		shape:        datastructure.NewNodeIdTable(pkg.MAX_OSM_NODE_ID),
		intersection: datastructure.NewNodeIdTable(pkg.MAX_OSM_NODE_ID),
		nodes:        make(map[uint64]*OSMNode),
		exitToMap:    make(map[uint64]string),
		refMap:       make(map[uint64]string),
	}
}

func (b *GraphBuilder) concurrency() int {
	if b.cfg.Mjolnir.Concurrency > 0 {
		return b.cfg.Mjolnir.Concurrency
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Build runs the whole pipeline against one source dump.
func (b *GraphBuilder) Build(ctx context.Context, source osmparser.Source) error {
	b.log.Info("parsing ways and relations to mark nodes needed")
	if err := source.ScanWays(ctx, b.wayCallback); err != nil {
		return err
	}
	if err := source.ScanRelations(ctx, b.relationCallback); err != nil {
		return err
	}
	b.log.Sugar().Infof("routable ways: %d", len(b.ways))

	b.log.Sugar().Infof("parsing nodes but only keeping %d", b.nodeCount)
	b.nodes = make(map[uint64]*OSMNode, b.nodeCount)
	if err := source.ScanNodes(ctx, b.nodeCallback); err != nil {
		return err
	}
	b.log.Sugar().Infof("routable nodes: %d", len(b.nodes))

	b.constructEdges()

	level := b.cfg.LocalLevel()
	b.tileNodes(level.TileSize, level.Level)

	manifest, err := b.buildLocalTiles(level.Level)
	if err != nil {
		return err
	}
	return b.writeManifest(manifest)
}

// wayCallback is pass 1: record routable ways and mark which node ids the
// node pass has to keep. A node referenced twice, or sitting at either end
// of a way, becomes an intersection.
func (b *GraphBuilder) wayCallback(osmID uint64, tags map[string]string, refs []uint64) error {
	if len(refs) < 2 {
		return nil
	}

	results, err := b.transform.TransformWay(tags)
	if err != nil {
		return errors.Wrapf(tagtransform.ErrTagTransform, "way %d: %v", osmID, err)
	}
	if len(results) == 0 {
		return nil
	}

	for _, ref := range refs {
		if b.shape.IsUsed(ref) {
			if err := b.intersection.Set(ref); err != nil {
				return err
			}
			b.edgeCount++
		} else {
			b.nodeCount++
		}
		if err := b.shape.Set(ref); err != nil {
			return err
		}
	}
	if err := b.intersection.Set(refs[0]); err != nil {
		return err
	}
	if err := b.intersection.Set(refs[len(refs)-1]); err != nil {
		return err
	}
	// overestimate, only used to reserve the edge table
	b.edgeCount += 2

	b.ways = append(b.ways, decodeWay(osmID, refs, results))

	if len(b.ways)%pkg.PROGRESS_LOG_INTERVAL == 0 {
		b.log.Sugar().Infof("scanning openstreetmap ways: %d...", len(b.ways))
	}
	return nil
}

// relationCallback is reserved for turn restrictions.
func (b *GraphBuilder) relationCallback(osmID uint64, tags map[string]string, members []osmparser.Member) error {
	return nil
}

// nodeCallback is pass 2: materialize only the nodes the way pass marked.
func (b *GraphBuilder) nodeCallback(osmID uint64, lon, lat float64, tags map[string]string) error {
	if !b.shape.IsUsed(osmID) {
		return nil
	}

	results, err := b.transform.TransformNode(tags)
	if err != nil {
		return errors.Wrapf(tagtransform.ErrTagTransform, "node %d: %v", osmID, err)
	}
	if len(results) == 0 {
		return nil
	}

	n := NewOSMNode(lat, lon)
	for key, value := range results {
		switch key {
		case "exit_to":
			n.ExitTo = len(value) > 0
			if n.ExitTo {
				b.exitToMap[osmID] = value
			}
		case "ref":
			n.Ref = len(value) > 0
			if n.Ref {
				b.refMap[osmID] = value
			}
		case "gate":
			n.Gate = value == "true"
		case "bollard":
			n.Bollard = value == "true"
		case "modes_mask":
			mask, err := strconv.Atoi(value)
			if err != nil {
				return errors.Wrapf(tagtransform.ErrTagTransform, "node %d: modes_mask %q", osmID, value)
			}
			n.ModesMask = uint8(mask)
		}
	}
	b.nodes[osmID] = n

	if len(b.nodes)%(20*pkg.PROGRESS_LOG_INTERVAL) == 0 {
		b.log.Sugar().Infof("processed %d nodes on ways", len(b.nodes))
	}
	return nil
}

// constructEdges walks each way once and cuts it at every intersection
// node. Interior nodes only contribute shape points.
func (b *GraphBuilder) constructEdges() {
	b.edges = make([]Edge, 0, b.edgeCount)
	for wayIndex := range b.ways {
		way := &b.ways[wayIndex]
		complete := true
		for _, id := range way.Nodes {
			if _, ok := b.nodes[id]; !ok {
				b.log.Sugar().Errorf("way %d references node %d missing from the dump", way.OsmID, id)
				complete = false
				break
			}
		}
		if !complete {
			continue
		}

		currentID := way.Nodes[0]
		node, ok := b.nodes[currentID]
		if !ok {
			b.log.Sugar().Errorf("way %d references node %d missing from the dump", way.OsmID, currentID)
			continue
		}

		edgeIndex := uint32(len(b.edges))
		edge := NewEdge(currentID, uint32(wayIndex), node.Coord)
		node.AddEdge(edgeIndex)

		for i := 1; i < len(way.Nodes); i++ {
			currentID = way.Nodes[i]
			nd, ok := b.nodes[currentID]
			if !ok {
				b.log.Sugar().Errorf("way %d references node %d missing from the dump", way.OsmID, currentID)
				continue
			}
			edge.AddLL(nd.Coord)

			if b.intersection.IsUsed(currentID) {
				edge.TargetNode = currentID
				nd.AddEdge(edgeIndex)
				b.edges = append(b.edges, edge)
				edgeIndex++

				// reopen at this intersection if the way continues
				if i < len(way.Nodes)-1 {
					edge = NewEdge(currentID, uint32(wayIndex), nd.Coord)
					nd.AddEdge(edgeIndex)
				}
			}
		}
	}
	b.log.Sugar().Infof("constructed %d edges", len(b.edges))
}

// tileNodes assigns every connected node its graph id and groups tiles into
// per-worker tasks. A tile goes to the next worker in round robin order the
// first time one of its nodes is seen; all later nodes of that tile land in
// the same bucket, so intra-tile indexes stay dense.
func (b *GraphBuilder) tileNodes(tileSize float64, level uint8) {
	b.log.Info("creating worker tasks")

	world := datastructure.NewTiles(tileSize)
	buckets := make(map[uint32]*tileBucket, int(float64(world.TileCount())*pkg.LAND_TILE_RATIO))

	workers := b.concurrency()
	tilesPerTask := int(float64(world.TileCount())*pkg.LAND_TILE_RATIO)/workers + 1
	b.tasks = make([][]*tileBucket, workers)
	for i := range b.tasks {
		b.tasks[i] = make([]*tileBucket, 0, tilesPerTask)
	}

	// ascending id order keeps bucket assignment deterministic per run
	ids := maps.Keys(b.nodes)
	slices.Sort(ids)

	currentWorker := 0
	for _, osmID := range ids {
		node := b.nodes[osmID]
		if node.EdgeCount() == 0 {
			continue
		}

		tileID := world.TileID(node.Coord.GetLat(), node.Coord.GetLon())
		bucket, started := buckets[tileID]
		if !started {
			bucket = &tileBucket{tileID: tileID}
			b.tasks[currentWorker] = append(b.tasks[currentWorker], bucket)
			buckets[tileID] = bucket
			currentWorker = (currentWorker + 1) % workers
		}
		bucket.nodeIDs = append(bucket.nodeIDs, osmID)

		node.GraphId = datastructure.NewGraphId(tileID, level, uint32(len(bucket.nodeIDs)-1))
	}
	b.log.Sugar().Infof("worker tasks created for %d tiles", len(buckets))
}

func decodeWay(osmID uint64, refs []uint64, tags map[string]string) OSMWay {
	w := OSMWay{
		OsmID: osmID,
		Nodes: slices.Clone(refs),
	}
	for key, value := range tags {
		switch key {
		case "road_class":
			if code, err := strconv.Atoi(value); err == nil && code <= int(pkg.ROAD_CLASS_OTHER) {
				w.RoadClass = pkg.RoadClass(code)
			} else {
				w.RoadClass = pkg.ROAD_CLASS_OTHER
			}
		case "use":
			if code, err := strconv.Atoi(value); err == nil && code <= int(pkg.USE_OTHER) {
				w.Use = pkg.Use(code)
			}
		case "auto_forward":
			w.AutoForward = value == "true"
		case "auto_backward":
			w.AutoBackward = value == "true"
		case "bike_forward":
			w.BikeForward = value == "true"
		case "bike_backward":
			w.BikeBackward = value == "true"
		case "pedestrian":
			w.Pedestrian = value == "true"
		case "private":
			w.DestinationOnly = value == "true"
		case "no_thru_traffic_":
			w.NoThruTraffic = value == "true"
		case "oneway":
			w.Oneway = value == "true"
		case "roundabout":
			w.Roundabout = value == "true"
		case "link":
			w.Link = value == "true"
		case "ferry":
			w.Ferry = value == "true"
		case "rail":
			w.Rail = value == "true"
		case "tunnel":
			w.Tunnel = value == "true"
		case "bridge":
			w.Bridge = value == "true"
		case "toll":
			w.Toll = value == "true"
		case "surface":
			w.Unpaved = value == "true"
		case "speed":
			if speed, err := strconv.ParseFloat(value, 64); err == nil {
				w.Speed = float32(speed)
			}
		case "lanes":
			if lanes, err := strconv.Atoi(value); err == nil {
				w.Lanes = uint8(lanes)
			}
		case "bike_network_mask":
			if mask, err := strconv.Atoi(value); err == nil {
				w.BikeNetwork = uint8(mask)
			}
		case "bike_national_ref":
			w.BikeNationalRef = value
		case "bike_regional_ref":
			w.BikeRegionalRef = value
		case "bike_local_ref":
			w.BikeLocalRef = value
		case "name":
			w.Name = value
		case "name:en":
			w.NameEn = value
		case "alt_name":
			w.AltName = value
		case "official_name":
			w.OfficialName = value
		case "ref":
			w.Ref = value
		case "int_ref":
			w.IntRef = value
		case "destination":
			w.Destination = value
		case "destination:ref":
			w.DestinationRef = value
		case "destination:ref:to":
			w.DestinationRefTo = value
		case "junction_ref":
			w.JunctionRef = value
		}
	}
	return w
}
