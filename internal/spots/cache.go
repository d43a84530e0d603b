package spots

import (
	"fmt"
	"os"
	"path/filepath"

	"spot-batch/internal/annotate"
	"spot-batch/internal/pyramid"
	"spot-batch/pkg/geometry"
)

// Tile is one unit of work: the fingerprinted crop of a parent annotation
// for one channel and Z range.
type Tile struct {
	Key    string
	Region geometry.Rect
	ZStart int
	ZEnd   int
	Parent *annotate.Annotation
}

// TileCache manages the on-disk tile directory of one image. Tiles are
// content-addressed by their key, so an existing file satisfies a region
// without re-exporting it. Layout: <root>/<imageName>[/3D]/<key><ext>.
type TileCache struct {
	Dir    string
	Format pyramid.Format
}

// NewTileCache resolves the cache directory for an image. Volumetric runs
// get their own 3D subdirectory since their keys carry Z ranges.
func NewTileCache(root, imageName string, volumetric bool, format pyramid.Format) *TileCache {
	dir := filepath.Join(root, SanitizeImageName(imageName))
	if volumetric {
		dir = filepath.Join(dir, "3D")
	}
	return &TileCache{Dir: dir, Format: format}
}

// EnsureDir creates the cache directory if needed.
func (c *TileCache) EnsureDir() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating cache directory %s: %w", c.Dir, err)
	}
	return nil
}

// Clean deletes the cache directory and recreates it empty.
func (c *TileCache) Clean() error {
	if err := os.RemoveAll(c.Dir); err != nil {
		return fmt.Errorf("error cleaning cache directory %s: %w", c.Dir, err)
	}
	return c.EnsureDir()
}

// TilePath returns the tile file path for a key.
func (c *TileCache) TilePath(key string) string {
	return filepath.Join(c.Dir, key+c.Format.Ext())
}

// Cached reports whether a tile file already exists for the key.
func (c *TileCache) Cached(key string) bool {
	_, err := os.Stat(c.TilePath(key))
	return err == nil
}

// Partition fingerprints every parent for one channel and splits the
// result into already-cached tiles and tiles that must be exported. In
// volumetric mode all parents share the [zStart, zEnd] descriptor;
// otherwise each tile carries its parent's own plane.
func (c *TileCache) Partition(parents []*annotate.Annotation, channel string, volumetric bool, zStart, zEnd int) (cached, missing []Tile) {
	for _, parent := range parents {
		t := Tile{Region: parent.Bounds(), Parent: parent}
		if volumetric {
			t.ZStart, t.ZEnd = zStart, zEnd
		} else {
			t.ZStart, t.ZEnd = parent.Z, parent.Z
		}
		t.Key = Key(channel, t.Region, ZDescriptor(t.ZStart, t.ZEnd))

		if c.Cached(t.Key) {
			cached = append(cached, t)
		} else {
			missing = append(missing, t)
		}
	}
	return cached, missing
}
