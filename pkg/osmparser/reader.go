package osmparser

import (
	"context"
	"os"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
)

var ErrParse = errors.New("osm pbf parse failure")

type WayHandler func(osmID uint64, tags map[string]string, refs []uint64) error

type NodeHandler func(osmID uint64, lon, lat float64, tags map[string]string) error

type Member struct {
	Type string
	Ref  int64
	Role string
}

type RelationHandler func(osmID uint64, tags map[string]string, members []Member) error

// Source is a raw dump that can be streamed one entity kind at a time. The
// graph builder runs the way pass, then relations, then nodes; each pass
// streams the whole file filtered to one kind.
type Source interface {
	ScanWays(ctx context.Context, handle WayHandler) error
	ScanNodes(ctx context.Context, handle NodeHandler) error
	ScanRelations(ctx context.Context, handle RelationHandler) error
}

// PBFSource streams a .osm.pbf file. Each pass opens its own scanner, so
// the same source can be scanned repeatedly.
type PBFSource struct {
	path string
}

func NewPBFSource(path string) *PBFSource {
	return &PBFSource{path: path}
}

func (p *PBFSource) scan(ctx context.Context, kind osm.Type, handle func(o osm.Object) error) error {
	f, err := os.Open(p.path)
	if err != nil {
		return errors.Wrapf(ErrParse, "opening %s: %v", p.path, err)
	}
	defer f.Close()

	scanner := osmpbf.New(ctx, f, 0)
	// must not be parallel, handlers mutate shared build state
	defer scanner.Close()

	for scanner.Scan() {
		o := scanner.Object()
		if o.ObjectID().Type() != kind {
			continue
		}
		if err := handle(o); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(ErrParse, "scanning %s: %v", p.path, err)
	}
	return nil
}

func tagMap(tags osm.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[tag.Key] = tag.Value
	}
	return m
}

func (p *PBFSource) ScanWays(ctx context.Context, handle WayHandler) error {
	return p.scan(ctx, osm.TypeWay, func(o osm.Object) error {
		way := o.(*osm.Way)
		refs := make([]uint64, 0, len(way.Nodes))
		for _, node := range way.Nodes {
			refs = append(refs, uint64(node.ID))
		}
		return handle(uint64(way.ID), tagMap(way.Tags), refs)
	})
}

func (p *PBFSource) ScanNodes(ctx context.Context, handle NodeHandler) error {
	return p.scan(ctx, osm.TypeNode, func(o osm.Object) error {
		node := o.(*osm.Node)
		return handle(uint64(node.ID), node.Lon, node.Lat, tagMap(node.Tags))
	})
}

func (p *PBFSource) ScanRelations(ctx context.Context, handle RelationHandler) error {
	return p.scan(ctx, osm.TypeRelation, func(o osm.Object) error {
		relation := o.(*osm.Relation)
		members := make([]Member, 0, len(relation.Members))
		for _, member := range relation.Members {
			members = append(members, Member{
				Type: string(member.Type),
				Ref:  member.Ref,
				Role: member.Role,
			})
		}
		return handle(uint64(relation.ID), tagMap(relation.Tags), members)
	})
}
