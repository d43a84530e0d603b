package geometry

// Polygon is a simple (non-self-intersecting) polygon given by its vertices.
type Polygon []Point

// Contains tests whether a point is inside the polygon using ray casting.
// Points exactly on an edge may fall on either side; the polygon must have
// at least three vertices.
func (poly Polygon) Contains(p Point) bool {
	if len(poly) < 3 {
		return false
	}

	inside := false
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := poly[i], poly[j]

		// Does a ray from p going right cross edge pi-pj?
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the smallest integer rectangle covering the polygon.
func (poly Polygon) Bounds() Rect {
	if len(poly) == 0 {
		return Rect{}
	}
	minX, minY := poly[0].X, poly[0].Y
	maxX, maxY := minX, minY
	for _, p := range poly[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	x0 := int(minX)
	y0 := int(minY)
	return Rect{
		X:      x0,
		Y:      y0,
		Width:  int(maxX) - x0,
		Height: int(maxY) - y0,
	}
}

// Centroid returns the average of the polygon's vertices.
func (poly Polygon) Centroid() Point {
	if len(poly) == 0 {
		return Point{}
	}
	var sumX, sumY float64
	for _, p := range poly {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(poly))
	return Point{X: sumX / n, Y: sumY / n}
}

// Clone returns a deep copy of the polygon.
func (poly Polygon) Clone() Polygon {
	out := make(Polygon, len(poly))
	copy(out, poly)
	return out
}
