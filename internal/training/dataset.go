// Package training builds ground-truth datasets from annotated project
// images, runs the external training process, and measures the resulting
// model against the validation split.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"spot-batch/internal/annotate"
	"spot-batch/internal/project"
	"spot-batch/internal/pyramid"
	"spot-batch/internal/spots"
	"spot-batch/pkg/geometry"
)

// ErrTrainingChannel is returned when the configuration does not resolve
// to exactly one channel; ground truth is always single-channel.
var ErrTrainingChannel = errors.New("training requires exactly one channel")

// ImageSource is one opened project image: its pixel access plus its
// annotations.
type ImageSource struct {
	Server    pyramid.ImageServer
	Hierarchy *annotate.Hierarchy
}

// OpenImage resolves a project entry into an ImageSource.
type OpenImage func(ref project.ImageRef) (*ImageSource, error)

// OpenProjectImage opens a project entry from disk: the image through the
// file-backed server and its annotation file if one is recorded.
func OpenProjectImage(projectPath string, p *project.File) OpenImage {
	return func(ref project.ImageRef) (*ImageSource, error) {
		server, err := pyramid.OpenFile(p.ImagePath(projectPath, ref))
		if err != nil {
			return nil, err
		}
		h := annotate.NewHierarchy()
		if annPath := p.AnnotationsPath(projectPath, ref); annPath != "" {
			if h, err = annotate.Load(annPath); err != nil {
				return nil, fmt.Errorf("error loading annotations for %s: %w", ref.Name, err)
			}
		}
		return &ImageSource{Server: server, Hierarchy: h}, nil
	}
}

// DatasetBuilder exports training and validation tiles with companion
// coordinate files from every rectangular annotation classified (case-
// insensitively) as "training" or "validation".
type DatasetBuilder struct {
	Project *project.File
	Open    OpenImage
	Cfg     spots.Config
	Log     zerolog.Logger
}

// Build populates <root>/train and <root>/val. It returns the number of
// exported tiles. An image that fails to open is logged and skipped; a
// channel misconfiguration aborts the build.
func (b *DatasetBuilder) Build(root string) (int, error) {
	trainDir := filepath.Join(root, "train")
	valDir := filepath.Join(root, "val")
	for _, dir := range []string{trainDir, valDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("error creating dataset directory: %w", err)
		}
	}

	exported := 0
	for _, ref := range b.Project.Images {
		src, err := b.Open(ref)
		if err != nil {
			b.Log.Warn().Err(err).Str("image", ref.Name).Msg("Skipping unreadable image")
			continue
		}
		n, err := b.buildImage(src, trainDir, valDir)
		if err != nil {
			return exported, err
		}
		exported += n
	}
	b.Log.Info().Int("tiles", exported).Msg("Dataset built")
	return exported, nil
}

func (b *DatasetBuilder) buildImage(src *ImageSource, trainDir, valDir string) (int, error) {
	bindings, err := spots.ResolveChannels(b.Cfg.Channels, src.Server)
	if err != nil {
		return 0, err
	}
	if len(bindings) != 1 {
		return 0, fmt.Errorf("%w: got %d", ErrTrainingChannel, len(bindings))
	}
	channel := bindings[0]

	zStart, zEnd := 0, 0
	if b.Cfg.Volumetric {
		zEnd = src.Server.NumZ() - 1
	}

	exported := 0
	for _, ann := range src.Hierarchy.Regions() {
		var destDir string
		switch strings.ToLower(ann.Class) {
		case "training":
			destDir = trainDir
		case "validation":
			destDir = valDir
		default:
			continue
		}
		if !ann.IsRect {
			b.Log.Warn().Str("annotation", ann.ID).Msg("Skipping non-rectangular training region")
			continue
		}

		points := b.collectPoints(src.Hierarchy, ann, zStart)
		if len(points) == 0 && !b.Cfg.IncludeNegatives {
			continue
		}

		tileZStart, tileZEnd := ann.Z, ann.Z
		if b.Cfg.Volumetric {
			tileZStart, tileZEnd = zStart, zEnd
		}
		bounds := ann.Bounds()
		key := spots.Key(channel.Name, bounds, spots.ZDescriptor(tileZStart, tileZEnd))
		name := spots.SanitizeImageName(src.Server.Name()) + "_" + key

		req := pyramid.TileRequest{
			Region:  bounds,
			Channel: channel.Index,
			ZStart:  tileZStart,
			ZEnd:    tileZEnd,
			Format:  b.Cfg.TileFormat(),
			Path:    filepath.Join(destDir, name+b.Cfg.TileFormat().Ext()),
		}
		if err := pyramid.WriteTile(src.Server, req); err != nil {
			b.Log.Warn().Err(err).Str("tile", name).Msg("Tile export failed, skipping")
			continue
		}
		if err := b.writeCoordinates(filepath.Join(destDir, name+".csv"), bounds, points); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

// trainingPoint is one ground-truth point in global coordinates.
type trainingPoint struct {
	p geometry.Point
	z int
}

// collectPoints gathers the ground truth of one training region. 2-D mode
// takes the points on the region's own plane that lie inside it; 3-D mode
// takes every point annotation whose centroid falls in the region's
// footprint, across all planes of the stack.
func (b *DatasetBuilder) collectPoints(h *annotate.Hierarchy, region *annotate.Annotation, zStart int) []trainingPoint {
	classFilter := map[string]bool{}
	for _, c := range b.Cfg.PointClasses {
		classFilter[c] = true
	}

	bounds := region.Bounds()
	var out []trainingPoint
	for _, ann := range h.PointAnnotations() {
		if len(classFilter) > 0 && !classFilter[ann.Class] {
			continue
		}
		if b.Cfg.Volumetric {
			if ann.Z < zStart || !bounds.Contains(ann.Centroid()) {
				continue
			}
			for _, p := range ann.Points {
				out = append(out, trainingPoint{p: p, z: ann.Z - zStart})
			}
			continue
		}
		if ann.Z != region.Z {
			continue
		}
		for _, p := range ann.Points {
			if bounds.Contains(p) {
				out = append(out, trainingPoint{p: p, z: ann.Z})
			}
		}
	}
	return out
}

// writeCoordinates writes the companion coordinate file: header y,x (or
// z,y,x), then one tile-local row per point.
func (b *DatasetBuilder) writeCoordinates(path string, bounds geometry.Rect, points []trainingPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating coordinate file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"y", "x"}
	if b.Cfg.Volumetric {
		header = []string{"z", "y", "x"}
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, tp := range points {
		y := formatCoord(tp.p.Y - float64(bounds.Y))
		x := formatCoord(tp.p.X - float64(bounds.X))
		rec := []string{y, x}
		if b.Cfg.Volumetric {
			rec = []string{strconv.Itoa(tp.z), y, x}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
