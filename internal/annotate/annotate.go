// Package annotate provides the annotation object model: user- or
// system-created shapes on image planes, the point detections attached to
// them, and the hierarchy that owns both.
package annotate

import (
	"sync"

	"spot-batch/pkg/geometry"
)

// Kind distinguishes the two annotation flavors.
type Kind int

const (
	// KindRegion is an area annotation outlined by a polygon.
	KindRegion Kind = iota
	// KindPoints is a point annotation holding one or more points.
	KindPoints
)

// Detection is a single detected spot attached to a parent annotation.
// Intensity and probability are the only measurements carried.
type Detection struct {
	Point       geometry.Point `json:"point"`
	Z           int            `json:"z"`
	Class       string         `json:"class,omitempty"`
	Intensity   float64        `json:"intensity"`
	Probability float64        `json:"probability"`
}

// Annotation is a shape on a single image plane. Region annotations own
// their detections as children; removing the annotation removes them too.
type Annotation struct {
	mu sync.Mutex

	ID     string           `json:"id"`
	Name   string           `json:"name,omitempty"`
	Class  string           `json:"class,omitempty"`
	Kind   Kind             `json:"kind"`
	ROI    geometry.Polygon `json:"roi,omitempty"`
	Points []geometry.Point `json:"points,omitempty"`
	Z      int              `json:"z"`
	IsRect bool             `json:"is_rect,omitempty"`

	locked   bool
	children []*Detection
}

// Bounds returns the bounding rectangle of the annotation's geometry.
func (a *Annotation) Bounds() geometry.Rect {
	if a.Kind == KindPoints {
		return geometry.Polygon(a.Points).Bounds()
	}
	return a.ROI.Bounds()
}

// Contains tests a point against the annotation's exact geometry, not its
// bounding box. Rectangles use the cheaper half-open rect test.
func (a *Annotation) Contains(p geometry.Point) bool {
	if a.IsRect {
		return a.ROI.Bounds().Contains(p)
	}
	return a.ROI.Contains(p)
}

// Centroid returns the centroid of the annotation's geometry.
func (a *Annotation) Centroid() geometry.Point {
	if a.Kind == KindPoints {
		return geometry.Polygon(a.Points).Centroid()
	}
	return a.ROI.Centroid()
}

// Lock marks the annotation as locked against interactive editing.
func (a *Annotation) Lock() {
	a.mu.Lock()
	a.locked = true
	a.mu.Unlock()
}

// Locked reports whether the annotation is locked.
func (a *Annotation) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}

// AddChildren attaches a batch of detections to the annotation.
func (a *Annotation) AddChildren(batch []*Detection) {
	a.mu.Lock()
	a.children = append(a.children, batch...)
	a.mu.Unlock()
}

// Children returns a snapshot of the attached detections.
func (a *Annotation) Children() []*Detection {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Detection, len(a.children))
	copy(out, a.children)
	return out
}

// ClearChildren removes all attached detections.
func (a *Annotation) ClearChildren() {
	a.mu.Lock()
	a.children = nil
	a.mu.Unlock()
}

// ClearChildrenWithClasses removes detections whose class is in the given
// set and returns how many were removed.
func (a *Annotation) ClearChildrenWithClasses(classes map[string]bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.children[:0]
	removed := 0
	for _, c := range a.children {
		if classes[c.Class] {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	a.children = kept
	return removed
}
