package graphbuilder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// writeManifest records what the build produced: one line per tile with its
// id, node count, directed edge count and byte size. The downstream
// validator reads this instead of re-opening every tile.
func (b *GraphBuilder) writeManifest(entries []ManifestEntry) error {
	slices.SortFunc(entries, func(x, y ManifestEntry) int {
		return int(x.TileID) - int(y.TileID)
	})

	if err := os.MkdirAll(b.cfg.Mjolnir.TileDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating tile directory %s", b.cfg.Mjolnir.TileDir)
	}
	path := filepath.Join(b.cfg.Mjolnir.TileDir, "manifest.txt.bz2")
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating manifest %s", path)
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return errors.Wrapf(err, "opening bzip2 stream for %s", path)
	}
	defer bz.Close()

	w := bufio.NewWriter(bz)
	defer w.Flush()

	fmt.Fprintf(w, "%d %d %d\n", len(entries), len(b.nodes), len(b.edges))
	for _, entry := range entries {
		fmt.Fprintf(w, "%d %d %d %d\n", entry.TileID, entry.Nodes, entry.DirectedEdges, entry.Bytes)
	}
	return nil
}
