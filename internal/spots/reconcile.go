package spots

import (
	"os"

	"github.com/rs/zerolog"

	"spot-batch/internal/annotate"
	"spot-batch/pkg/geometry"
)

// Reconciler maps tile-local detections back into global image coordinates
// and attaches them to the right parent and plane.
type Reconciler struct {
	Hierarchy *annotate.Hierarchy
	Cfg       Config
	Log       zerolog.Logger
}

// Reconcile processes the result files of one channel's tiles. A tile with
// no result file contributes zero detections; that is not an error. It
// returns how many detections were attached and fires a single change
// notification for the channel.
func (r *Reconciler) Reconcile(dir string, channel ChannelBinding, tiles []Tile) int {
	attached := 0
	for _, t := range tiles {
		attached += r.reconcileTile(dir, channel, t)
	}
	r.Hierarchy.NotifyChanged()
	return attached
}

func (r *Reconciler) reconcileTile(dir string, channel ChannelBinding, t Tile) int {
	path, ok := FindResultFile(dir, t.Key)
	if !ok {
		r.Log.Debug().Str("tile", t.Key).Msg("No result file, zero detections")
		return 0
	}

	info, err := ParseKey(t.Key)
	if err != nil {
		r.Log.Warn().Err(err).Str("tile", t.Key).Msg("Skipping unparseable tile key")
		return 0
	}

	f, err := os.Open(path)
	if err != nil {
		r.Log.Warn().Err(err).Str("tile", t.Key).Msg("Skipping unreadable result file")
		return 0
	}
	rows, err := ParseResults(f, r.Cfg.Volumetric)
	f.Close()
	if err != nil {
		r.Log.Warn().Err(err).Str("tile", t.Key).Msg("Skipping malformed result file")
		return 0
	}

	planes := r.planeParents(t)
	x0 := float64(info.Region.X)
	y0 := float64(info.Region.Y)

	// Group retained points by target plane.
	groups := make(map[int][]*annotate.Detection)
	for _, row := range rows {
		p := geometry.Point{X: row.X + x0, Y: row.Y + y0}
		z := t.Parent.Z
		if r.Cfg.Volumetric {
			z = t.ZStart + row.Z
		}
		parent, ok := planes[z]
		if !ok || !parent.Contains(p) {
			// Model output in the padding between the shape and its
			// bounding box, or off the requested planes.
			continue
		}
		groups[z] = append(groups[z], &annotate.Detection{
			Point:       p,
			Z:           z,
			Class:       r.detectionClass(channel),
			Intensity:   row.Intensity,
			Probability: row.Probability,
		})
	}

	attached := 0
	for z, batch := range groups {
		parent := planes[z]
		parent.Lock()
		parent.AddChildren(batch)
		attached += len(batch)
	}
	return attached
}

// planeParents maps every plane of the tile's Z range to its parent shape.
// When the parent exists on only some planes, it is cloned onto the rest;
// planes that already hold a matching shape keep it, so re-running does not
// multiply shapes on partially populated stacks.
func (r *Reconciler) planeParents(t Tile) map[int]*annotate.Annotation {
	planes := map[int]*annotate.Annotation{t.Parent.Z: t.Parent}
	if !r.Cfg.Volumetric {
		return planes
	}

	bounds := t.Parent.Bounds()
	for _, a := range r.Hierarchy.Regions() {
		if a.Z < t.ZStart || a.Z > t.ZEnd {
			continue
		}
		if _, taken := planes[a.Z]; taken {
			continue
		}
		if a.Name == t.Parent.Name && a.Class == t.Parent.Class && a.Bounds() == bounds {
			planes[a.Z] = a
		}
	}

	for z := t.ZStart; z <= t.ZEnd; z++ {
		if _, ok := planes[z]; !ok {
			planes[z] = r.Hierarchy.CloneToPlane(t.Parent, z)
		}
	}
	return planes
}

func (r *Reconciler) detectionClass(channel ChannelBinding) string {
	switch r.Cfg.ClassMode {
	case ClassFixed:
		return r.Cfg.FixedClass
	case ClassPerChannel:
		return channel.Name
	default:
		return ""
	}
}
