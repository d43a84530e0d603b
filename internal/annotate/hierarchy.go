package annotate

import (
	"fmt"
	"sync"
)

// Hierarchy holds the annotations of one image and notifies listeners when
// the set of objects changes.
type Hierarchy struct {
	mu          sync.RWMutex
	annotations []*Annotation
	listeners   []func()
	nextID      int
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{nextID: 1}
}

// Add inserts an annotation, assigning an ID if it has none.
func (h *Hierarchy) Add(a *Annotation) {
	h.mu.Lock()
	if a.ID == "" {
		a.ID = fmt.Sprintf("ann-%04d", h.nextID)
	}
	h.nextID++
	h.annotations = append(h.annotations, a)
	h.mu.Unlock()
}

// Remove deletes an annotation by ID. Its detections go with it.
func (h *Hierarchy) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, a := range h.annotations {
		if a.ID == id {
			h.annotations = append(h.annotations[:i], h.annotations[i+1:]...)
			return true
		}
	}
	return false
}

// Annotations returns a snapshot of the current annotations.
func (h *Hierarchy) Annotations() []*Annotation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Annotation, len(h.annotations))
	copy(out, h.annotations)
	return out
}

// Regions returns the region annotations only.
func (h *Hierarchy) Regions() []*Annotation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Annotation
	for _, a := range h.annotations {
		if a.Kind == KindRegion {
			out = append(out, a)
		}
	}
	return out
}

// PointAnnotations returns the point annotations only.
func (h *Hierarchy) PointAnnotations() []*Annotation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Annotation
	for _, a := range h.annotations {
		if a.Kind == KindPoints {
			out = append(out, a)
		}
	}
	return out
}

// CloneToPlane duplicates an annotation onto another plane, preserving
// geometry, class and name, and adds the clone to the hierarchy.
func (h *Hierarchy) CloneToPlane(a *Annotation, z int) *Annotation {
	clone := &Annotation{
		Name:   a.Name,
		Class:  a.Class,
		Kind:   a.Kind,
		ROI:    a.ROI.Clone(),
		Z:      z,
		IsRect: a.IsRect,
	}
	if len(a.Points) > 0 {
		clone.Points = append(clone.Points[:0:0], a.Points...)
	}
	h.Add(clone)
	return clone
}

// OnChange registers a listener invoked by NotifyChanged.
func (h *Hierarchy) OnChange(fn func()) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// NotifyChanged fires one change notification to every listener.
func (h *Hierarchy) NotifyChanged() {
	h.mu.RLock()
	listeners := make([]func(), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
