package tagtransform

import (
	"github.com/pkg/errors"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/config"
)

var ErrTagTransform = errors.New("tag transform failure")

// Transformer turns raw osm tags into the normalized key set the graph
// builder consumes. An empty result means the entity is not routable and is
// dropped. Implementations must be referentially transparent: the way and
// node passes call them concurrently with the rest of the stream decode.
type Transformer interface {
	TransformNode(tags map[string]string) (map[string]string, error)
	TransformWay(tags map[string]string) (map[string]string, error)
}

// FromConfig picks the transform named by the config tree. Scripted
// transforms are loaded by the embedding application; this builder only
// bundles the built-in default, selected by empty script handles.
func FromConfig(cfg config.TagTransform) (Transformer, error) {
	if cfg.NodeScript != "" || cfg.WayScript != "" {
		return nil, errors.Wrapf(ErrTagTransform,
			"scripted transform %q/%q is not bundled", cfg.NodeScript, cfg.WayScript)
	}
	return NewDefaultTransform(), nil
}
