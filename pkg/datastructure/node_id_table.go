package datastructure

import (
	"github.com/pkg/errors"
)

var ErrIDOutOfRange = errors.New("osm node id exceeds the configured maximum")

// NodeIdTable is a dense bitset keyed by source osm node id. One build
// allocates two of these (nodes on ways, intersection nodes), sets bits
// during the sequential passes and never clears them. After the partitioning
// phase the tables are frozen and may be read from any goroutine.
type NodeIdTable struct {
	maxOsmID   uint64
	bitmarkers []uint64
}

func NewNodeIdTable(maxOsmID uint64) *NodeIdTable {
	return &NodeIdTable{
		maxOsmID:   maxOsmID,
		bitmarkers: make([]uint64, maxOsmID/64+1),
	}
}

func (t *NodeIdTable) Set(id uint64) error {
	if id > t.maxOsmID {
		return errors.Wrapf(ErrIDOutOfRange, "id %d > max %d", id, t.maxOsmID)
	}
	t.bitmarkers[id/64] |= uint64(1) << (id % 64)
	return nil
}

func (t *NodeIdTable) IsUsed(id uint64) bool {
	if id > t.maxOsmID {
		return false
	}
	return t.bitmarkers[id/64]&(uint64(1)<<(id%64)) != 0
}
