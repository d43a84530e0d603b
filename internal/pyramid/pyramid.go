// Package pyramid defines the image-server boundary: access to channel and
// plane metadata of a multi-channel, optionally volumetric image, and the
// writers that materialize region crops ("tiles") on disk in one of the two
// supported container formats.
package pyramid

import (
	"fmt"

	"spot-batch/pkg/geometry"
)

// Plane is a single-channel, single-Z pixel buffer. Pixels are 16-bit
// grayscale in row-major order; 8-bit sources are widened on read.
type Plane struct {
	Width  int
	Height int
	Pix    []uint16
}

// At returns the pixel value at (x, y) in plane-local coordinates.
func (p *Plane) At(x, y int) uint16 {
	return p.Pix[y*p.Width+x]
}

// Set stores a pixel value at (x, y) in plane-local coordinates.
func (p *Plane) Set(x, y int, v uint16) {
	p.Pix[y*p.Width+x] = v
}

// NewPlane allocates a zeroed plane buffer.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// RegionRequest asks for one channel of one Z plane restricted to a
// rectangle in global image coordinates.
type RegionRequest struct {
	Region  geometry.Rect
	Channel int
	Z       int
}

// ImageServer exposes the metadata and pixel access of one image.
// Implementations must be safe for concurrent ReadRegion calls.
type ImageServer interface {
	Name() string
	Width() int
	Height() int
	NumChannels() int
	ChannelName(i int) string
	NumZ() int
	ReadRegion(req RegionRequest) (*Plane, error)
}

// Format selects the tile container format.
type Format int

const (
	// FormatTIFF writes single-plane 16-bit grayscale TIFF tiles.
	FormatTIFF Format = iota
	// FormatZarr writes chunked zarr containers, one chunk per plane.
	FormatZarr
)

// Ext returns the container file extension including the leading dot.
func (f Format) Ext() string {
	if f == FormatZarr {
		return ".ome.zarr"
	}
	return ".ome.tiff"
}

func (f Format) String() string {
	if f == FormatZarr {
		return "ome-zarr"
	}
	return "ome-tiff"
}

// TileRequest describes one tile to materialize: a single channel of a
// bounded region, restricted to an inclusive Z range, at the given path.
type TileRequest struct {
	Region  geometry.Rect
	Channel int
	ZStart  int
	ZEnd    int
	Format  Format
	Path    string
}

// WriteTile exports the requested crop through the server. TIFF supports a
// single plane only; Z ranges require the zarr container.
func WriteTile(s ImageServer, req TileRequest) error {
	if !req.Region.Valid() {
		return fmt.Errorf("invalid tile region %+v", req.Region)
	}
	if req.Region.X < 0 || req.Region.Y < 0 ||
		req.Region.X+req.Region.Width > s.Width() ||
		req.Region.Y+req.Region.Height > s.Height() {
		return fmt.Errorf("tile region %+v outside image %dx%d",
			req.Region, s.Width(), s.Height())
	}
	if req.Channel < 0 || req.Channel >= s.NumChannels() {
		return fmt.Errorf("channel %d out of range (image has %d)", req.Channel, s.NumChannels())
	}
	if req.ZStart < 0 || req.ZEnd >= s.NumZ() || req.ZStart > req.ZEnd {
		return fmt.Errorf("invalid z range %d-%d (image has %d planes)",
			req.ZStart, req.ZEnd, s.NumZ())
	}

	switch req.Format {
	case FormatTIFF:
		if req.ZStart != req.ZEnd {
			return fmt.Errorf("tiff tiles hold a single plane; use zarr for z range %d-%d",
				req.ZStart, req.ZEnd)
		}
		plane, err := s.ReadRegion(RegionRequest{Region: req.Region, Channel: req.Channel, Z: req.ZStart})
		if err != nil {
			return fmt.Errorf("failed to read region: %w", err)
		}
		return writeTIFF(req.Path, plane)
	case FormatZarr:
		return writeZarr(s, req)
	default:
		return fmt.Errorf("unknown tile format %d", req.Format)
	}
}
