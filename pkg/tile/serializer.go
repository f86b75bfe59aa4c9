package tile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/lintang-b-s/osm-tile-graph-builder/pkg/datastructure"
)

// Packed little-endian record sizes. The consumer reads these bit for bit,
// so they are fixed here rather than derived from the Go structs.
const (
	headerSize        = 44
	nodeInfoSize      = 24
	directedEdgeSize  = 28
	edgeInfoFixedSize = 24
)

type header struct {
	GraphId           uint64
	NodeCount         uint32
	DirectedEdgeCount uint32
	EdgeInfoOffset    uint32
	EdgeInfoSize      uint32
	TextOffset        uint32
	TextSize          uint32
	Reserved0         uint64
	Reserved1         uint32
}

// StoreTileData serializes the tile to <tileDir>/<level>/<tileID>.gph and
// returns the byte size written. The write is atomic: a temp file in the
// same directory is renamed over the final name.
func (t *GraphTileBuilder) StoreTileData(tileDir string, tileBase datastructure.GraphId) (int64, error) {
	dir := filepath.Join(tileDir, fmt.Sprintf("%d", tileBase.Level()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "creating tile directory %s", dir)
	}

	final := filepath.Join(dir, fmt.Sprintf("%d.gph", tileBase.TileID()))
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%d-*.tmp", tileBase.TileID()))
	if err != nil {
		return 0, errors.Wrapf(err, "creating temp tile for %s", final)
	}
	defer os.Remove(tmp.Name())

	written, err := t.writeTo(tmp, tileBase)
	if err != nil {
		tmp.Close()
		return 0, errors.Wrapf(err, "writing tile %s", final)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, errors.Wrapf(err, "syncing tile %s", final)
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.Wrapf(err, "closing tile %s", final)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return 0, errors.Wrapf(err, "renaming tile into %s", final)
	}
	return written, nil
}

func (t *GraphTileBuilder) writeTo(f *os.File, tileBase datastructure.GraphId) (int64, error) {
	edgeInfoOffset := uint32(headerSize) +
		nodeInfoSize*t.NodeCount() + directedEdgeSize*t.DirectedEdgeCount()

	w := bufio.NewWriter(f)

	hdr := header{
		GraphId:           uint64(tileBase),
		NodeCount:         t.NodeCount(),
		DirectedEdgeCount: t.DirectedEdgeCount(),
		EdgeInfoOffset:    edgeInfoOffset,
		EdgeInfoSize:      t.edgeInfoSize,
		TextOffset:        edgeInfoOffset + t.edgeInfoSize,
		TextSize:          t.textSize,
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return 0, err
	}

	for _, node := range t.nodes {
		if err := binary.Write(w, binary.LittleEndian, node.Lat); err != nil {
			return 0, err
		}
		if err := binary.Write(w, binary.LittleEndian, node.Lng); err != nil {
			return 0, err
		}
		if err := binary.Write(w, binary.LittleEndian, node.EdgeIndex); err != nil {
			return 0, err
		}
		if err := binary.Write(w, binary.LittleEndian, node.EdgeCount); err != nil {
			return 0, err
		}
	}

	for _, edge := range t.directedEdges {
		record := struct {
			EndNode        uint64
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
			Pad            uint16
		}{
			EndNode:        uint64(edge.EndNode),
			EdgeDataOffset: edge.EdgeDataOffset,
			Length:         edge.Length,
			RoadClass:      edge.RoadClass,
			Use:            edge.Use,
			Speed:          edge.Speed,
			Lanes:          edge.Lanes,
			ForwardAccess:  edge.ForwardAccess,
			ReverseAccess:  edge.ReverseAccess,
			Flags:          edge.Flags,
			OppIndex:       edge.OppIndex,
			BikeNetwork:    edge.BikeNetwork,
		}
		if err := binary.Write(w, binary.LittleEndian, record); err != nil {
			return 0, err
		}
	}

	for _, edgeInfo := range t.edgeInfos {
		fixed := struct {
			NodeA     uint64
			NodeB     uint64
			NameCount uint32
			ShapeLen  uint32
		}{
			NodeA:     uint64(edgeInfo.nodeA),
			NodeB:     uint64(edgeInfo.nodeB),
			NameCount: uint32(len(edgeInfo.streetNameOffsets)),
			ShapeLen:  uint32(len(edgeInfo.encodedShape)),
		}
		if err := binary.Write(w, binary.LittleEndian, fixed); err != nil {
			return 0, err
		}
		for _, offset := range edgeInfo.streetNameOffsets {
			if err := binary.Write(w, binary.LittleEndian, offset); err != nil {
				return 0, err
			}
		}
		if _, err := w.Write(edgeInfo.encodedShape); err != nil {
			return 0, err
		}
	}

	for _, text := range t.textList {
		if _, err := w.WriteString(text); err != nil {
			return 0, err
		}
		if err := w.WriteByte(0); err != nil {
			return 0, err
		}
	}

	if err := w.Flush(); err != nil {
		return 0, err
	}
	return int64(hdr.TextOffset + hdr.TextSize), nil
}
