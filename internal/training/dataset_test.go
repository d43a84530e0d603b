package training

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"spot-batch/internal/annotate"
	"spot-batch/internal/project"
	"spot-batch/internal/pyramid"
	"spot-batch/internal/spots"
	"spot-batch/pkg/geometry"
)

func regionAnnotation(class string, x, y, w, h, z int) *annotate.Annotation {
	return &annotate.Annotation{
		Class:  class,
		Kind:   annotate.KindRegion,
		ROI:    geometry.Rect{X: x, Y: y, Width: w, Height: h}.Polygon(),
		Z:      z,
		IsRect: true,
	}
}

func pointsAnnotation(class string, z int, pts ...geometry.Point) *annotate.Annotation {
	return &annotate.Annotation{
		Class:  class,
		Kind:   annotate.KindPoints,
		Points: pts,
		Z:      z,
	}
}

func memOpen(src *ImageSource) OpenImage {
	return func(project.ImageRef) (*ImageSource, error) { return src, nil }
}

func oneImageProject() *project.File {
	p := project.New("train")
	p.Images = []project.ImageRef{{Name: "img", Path: "img.tiff"}}
	return p
}

func TestBuildDataset2D(t *testing.T) {
	h := annotate.NewHierarchy()
	h.Add(regionAnnotation("Training", 10, 10, 40, 40, 0))
	h.Add(regionAnnotation("VALIDATION", 100, 100, 40, 40, 0))
	h.Add(pointsAnnotation("", 0,
		geometry.Point{X: 20, Y: 30},
		geometry.Point{X: 200, Y: 200})) // outside both regions
	h.Add(pointsAnnotation("", 0, geometry.Point{X: 110, Y: 120}))

	src := &ImageSource{
		Server:    pyramid.NewMemServer("img", 300, 300, []string{"SPOT"}, 1),
		Hierarchy: h,
	}
	b := &DatasetBuilder{
		Project: oneImageProject(),
		Open:    memOpen(src),
		Cfg:     spots.DefaultConfig().WithChannels("SPOT"),
		Log:     zerolog.Nop(),
	}

	root := t.TempDir()
	n, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d tiles, want 2", n)
	}

	trainTile := filepath.Join(root, "train", "img_SPOT_10_10_40_40_z0.ome.tiff")
	if _, err := os.Stat(trainTile); err != nil {
		t.Errorf("training tile missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "train", "img_SPOT_10_10_40_40_z0.csv"))
	if err != nil {
		t.Fatalf("training coordinates missing: %v", err)
	}
	// Tile-local coordinates of the one contained point.
	if got := strings.TrimSpace(string(data)); got != "y,x\n20,10" {
		t.Errorf("training coordinates = %q", got)
	}

	valData, err := os.ReadFile(filepath.Join(root, "val", "img_SPOT_100_100_40_40_z0.csv"))
	if err != nil {
		t.Fatalf("validation coordinates missing: %v", err)
	}
	if got := strings.TrimSpace(string(valData)); got != "y,x\n20,10" {
		t.Errorf("validation coordinates = %q", got)
	}
}

func TestBuildDatasetNegatives(t *testing.T) {
	h := annotate.NewHierarchy()
	h.Add(regionAnnotation("training", 10, 10, 20, 20, 0))

	src := &ImageSource{
		Server:    pyramid.NewMemServer("img", 100, 100, []string{"SPOT"}, 1),
		Hierarchy: h,
	}
	b := &DatasetBuilder{
		Project: oneImageProject(),
		Open:    memOpen(src),
		Cfg:     spots.DefaultConfig().WithChannels("SPOT"),
		Log:     zerolog.Nop(),
	}

	// Without opting in, a pointless region is skipped entirely.
	n, err := b.Build(t.TempDir())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d tiles without negatives, want 0", n)
	}

	b.Cfg = b.Cfg.WithIncludeNegatives(true)
	root := t.TempDir()
	n, err = b.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported %d tiles with negatives, want 1", n)
	}
	data, err := os.ReadFile(filepath.Join(root, "train", "img_SPOT_10_10_20_20_z0.csv"))
	if err != nil {
		t.Fatalf("negative coordinates missing: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "y,x" {
		t.Errorf("negative coordinate file = %q, want header only", got)
	}
}

func TestBuildDatasetClassFilter(t *testing.T) {
	h := annotate.NewHierarchy()
	h.Add(regionAnnotation("training", 0, 0, 50, 50, 0))
	h.Add(pointsAnnotation("nucleus", 0, geometry.Point{X: 10, Y: 10}))
	h.Add(pointsAnnotation("debris", 0, geometry.Point{X: 20, Y: 20}))

	src := &ImageSource{
		Server:    pyramid.NewMemServer("img", 100, 100, []string{"SPOT"}, 1),
		Hierarchy: h,
	}
	b := &DatasetBuilder{
		Project: oneImageProject(),
		Open:    memOpen(src),
		Cfg:     spots.DefaultConfig().WithChannels("SPOT").WithPointClasses("nucleus"),
		Log:     zerolog.Nop(),
	}

	root := t.TempDir()
	if _, err := b.Build(root); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "train", "img_SPOT_0_0_50_50_z0.csv"))
	if err != nil {
		t.Fatalf("coordinates missing: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "y,x\n10,10" {
		t.Errorf("filtered coordinates = %q", got)
	}
}

func TestBuildDatasetVolumetric(t *testing.T) {
	h := annotate.NewHierarchy()
	h.Add(regionAnnotation("training", 10, 10, 30, 30, 0))
	// Centroid inside the footprint, on plane 2.
	h.Add(pointsAnnotation("", 2, geometry.Point{X: 15, Y: 25}))
	// Centroid outside the footprint.
	h.Add(pointsAnnotation("", 1, geometry.Point{X: 80, Y: 80}))

	src := &ImageSource{
		Server:    pyramid.NewMemServer("stack", 100, 100, []string{"SPOT"}, 4),
		Hierarchy: h,
	}
	b := &DatasetBuilder{
		Project: oneImageProject(),
		Open:    memOpen(src),
		Cfg:     spots.DefaultConfig().WithChannels("SPOT").WithVolumetric(0, -1),
		Log:     zerolog.Nop(),
	}

	root := t.TempDir()
	n, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported %d tiles, want 1", n)
	}

	// Volumetric tiles use the zarr container over the whole stack.
	tile := filepath.Join(root, "train", "stack_SPOT_10_10_30_30_z0-3.ome.zarr")
	if info, err := os.Stat(tile); err != nil || !info.IsDir() {
		t.Errorf("zarr tile missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "train", "stack_SPOT_10_10_30_30_z0-3.csv"))
	if err != nil {
		t.Fatalf("coordinates missing: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "z,y,x\n2,15,5" {
		t.Errorf("volumetric coordinates = %q", got)
	}
}

func TestBuildDatasetRequiresOneChannel(t *testing.T) {
	h := annotate.NewHierarchy()
	h.Add(regionAnnotation("training", 0, 0, 10, 10, 0))
	src := &ImageSource{
		Server:    pyramid.NewMemServer("img", 100, 100, []string{"DAPI", "SPOT"}, 1),
		Hierarchy: h,
	}
	b := &DatasetBuilder{
		Project: oneImageProject(),
		Open:    memOpen(src),
		Cfg:     spots.DefaultConfig().WithChannels("DAPI", "SPOT").WithIncludeNegatives(true),
		Log:     zerolog.Nop(),
	}
	if _, err := b.Build(t.TempDir()); err == nil {
		t.Error("expected error for two training channels")
	}
}
