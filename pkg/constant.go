package pkg

const (
	// source node ids above this abort the build. bump when osm grows past it.
	MAX_OSM_NODE_ID = uint64(4000000000)

	// sentinel for a missing opposing directed edge. the consumer stores
	// opp_index in a 5 bit field, so 31 is the only valid sentinel.
	INVALID_OPPOSING_INDEX = uint32(31)

	PROGRESS_LOG_INTERVAL = 50000

	// < 30% of the earth is land and most roads are on land. used only to
	// pre-size the per-tile bucket map and the per-worker task lists.
	LAND_TILE_RATIO = 0.3
)
