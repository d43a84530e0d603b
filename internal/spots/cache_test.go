package spots

import (
	"os"
	"path/filepath"
	"testing"

	"spot-batch/internal/annotate"
	"spot-batch/internal/pyramid"
	"spot-batch/pkg/geometry"
)

func rectAnnotation(x, y, w, h, z int) *annotate.Annotation {
	return &annotate.Annotation{
		Name:   "Region",
		Kind:   annotate.KindRegion,
		ROI:    geometry.Rect{X: x, Y: y, Width: w, Height: h}.Polygon(),
		Z:      z,
		IsRect: true,
	}
}

func TestCacheLayout(t *testing.T) {
	root := t.TempDir()
	flat := NewTileCache(root, "slide,1", false, pyramid.FormatTIFF)
	if want := filepath.Join(root, "slide1"); flat.Dir != want {
		t.Errorf("2-D cache dir = %q, want %q", flat.Dir, want)
	}
	vol := NewTileCache(root, "slide1", true, pyramid.FormatZarr)
	if want := filepath.Join(root, "slide1", "3D"); vol.Dir != want {
		t.Errorf("volumetric cache dir = %q, want %q", vol.Dir, want)
	}
	if got := flat.TilePath("k"); got != filepath.Join(flat.Dir, "k.ome.tiff") {
		t.Errorf("TilePath = %q", got)
	}
}

func TestPartition(t *testing.T) {
	cache := NewTileCache(t.TempDir(), "img", false, pyramid.FormatTIFF)
	if err := cache.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	a := rectAnnotation(0, 0, 10, 10, 0)
	b := rectAnnotation(20, 20, 10, 10, 2)

	cached, missing := cache.Partition([]*annotate.Annotation{a, b}, "SPOT", false, 0, 0)
	if len(cached) != 0 || len(missing) != 2 {
		t.Fatalf("empty cache: cached=%d missing=%d", len(cached), len(missing))
	}
	// 2-D keys carry each parent's own plane.
	if missing[1].Key != "SPOT_20_20_10_10_z2" {
		t.Errorf("key = %q", missing[1].Key)
	}

	// Materialize one tile; it must move to the cached side.
	if err := os.WriteFile(cache.TilePath(missing[0].Key), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing tile: %v", err)
	}
	cached, missing = cache.Partition([]*annotate.Annotation{a, b}, "SPOT", false, 0, 0)
	if len(cached) != 1 || len(missing) != 1 {
		t.Errorf("after write: cached=%d missing=%d", len(cached), len(missing))
	}
	if cached[0].Parent != a {
		t.Error("cached tile bound to wrong parent")
	}
}

func TestPartitionVolumetric(t *testing.T) {
	cache := NewTileCache(t.TempDir(), "img", true, pyramid.FormatZarr)
	a := rectAnnotation(0, 0, 10, 10, 3)

	_, missing := cache.Partition([]*annotate.Annotation{a}, "SPOT", true, 0, 4)
	if len(missing) != 1 {
		t.Fatalf("missing = %d", len(missing))
	}
	if missing[0].Key != "SPOT_0_0_10_10_z0-4" {
		t.Errorf("volumetric key = %q", missing[0].Key)
	}
	if missing[0].ZStart != 0 || missing[0].ZEnd != 4 {
		t.Errorf("tile z range = %d-%d", missing[0].ZStart, missing[0].ZEnd)
	}
}

func TestClean(t *testing.T) {
	cache := NewTileCache(t.TempDir(), "img", false, pyramid.FormatTIFF)
	if err := cache.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if err := os.WriteFile(cache.TilePath("SPOT_0_0_1_1_z0"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing tile: %v", err)
	}

	if err := cache.Clean(); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	entries, err := os.ReadDir(cache.Dir)
	if err != nil {
		t.Fatalf("cache dir missing after Clean: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir not empty after Clean: %d entries", len(entries))
	}
}
