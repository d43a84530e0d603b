package pyramid

import (
	"fmt"

	"spot-batch/pkg/geometry"
)

// MemServer is an in-memory ImageServer. It backs tests and programmatic
// use where pixel data is synthesized rather than read from disk.
type MemServer struct {
	name     string
	width    int
	height   int
	channels []string
	nz       int
	// planes[c][z] is one full-image plane.
	planes [][]*Plane
}

// NewMemServer allocates a zero-filled in-memory image.
func NewMemServer(name string, width, height int, channels []string, nz int) *MemServer {
	if nz < 1 {
		nz = 1
	}
	planes := make([][]*Plane, len(channels))
	for c := range channels {
		planes[c] = make([]*Plane, nz)
		for z := 0; z < nz; z++ {
			planes[c][z] = NewPlane(width, height)
		}
	}
	return &MemServer{
		name:     name,
		width:    width,
		height:   height,
		channels: append([]string(nil), channels...),
		nz:       nz,
		planes:   planes,
	}
}

func (s *MemServer) Name() string            { return s.name }
func (s *MemServer) Width() int              { return s.width }
func (s *MemServer) Height() int             { return s.height }
func (s *MemServer) NumChannels() int        { return len(s.channels) }
func (s *MemServer) ChannelName(i int) string { return s.channels[i] }
func (s *MemServer) NumZ() int               { return s.nz }

// SetPixel stores a value at global coordinates on one channel/plane.
func (s *MemServer) SetPixel(c, z, x, y int, v uint16) {
	s.planes[c][z].Set(x, y, v)
}

// ReadRegion copies the requested rectangle out of the stored plane.
func (s *MemServer) ReadRegion(req RegionRequest) (*Plane, error) {
	if req.Channel < 0 || req.Channel >= len(s.channels) {
		return nil, fmt.Errorf("channel %d out of range", req.Channel)
	}
	if req.Z < 0 || req.Z >= s.nz {
		return nil, fmt.Errorf("plane %d out of range", req.Z)
	}
	return cropPlane(s.planes[req.Channel][req.Z], req.Region)
}

// cropPlane copies a rectangle out of a full-image plane.
func cropPlane(src *Plane, r geometry.Rect) (*Plane, error) {
	if r.X < 0 || r.Y < 0 || r.X+r.Width > src.Width || r.Y+r.Height > src.Height {
		return nil, fmt.Errorf("region %+v outside plane %dx%d", r, src.Width, src.Height)
	}
	out := NewPlane(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		srcOff := (r.Y+y)*src.Width + r.X
		copy(out.Pix[y*r.Width:(y+1)*r.Width], src.Pix[srcOff:srcOff+r.Width])
	}
	return out, nil
}
