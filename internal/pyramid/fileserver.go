package pyramid

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// FileServer serves planes from a flat (single Z) image file. The image is
// decoded once on open and split into per-channel 16-bit planes; OpenCV
// handles the container formats.
type FileServer struct {
	name     string
	width    int
	height   int
	channels []string
	planes   []*Plane
}

// OpenFile decodes an image file into a FileServer. Channel names default
// to C0..Cn and can be replaced with SetChannelNames.
func OpenFile(path string) (*FileServer, error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	defer mat.Close()

	chans := gocv.Split(mat)
	defer func() {
		for i := range chans {
			chans[i].Close()
		}
	}()

	s := &FileServer{
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		width:  mat.Cols(),
		height: mat.Rows(),
	}
	for i := range chans {
		plane, err := matToPlane(&chans[i])
		if err != nil {
			return nil, fmt.Errorf("failed to extract channel %d: %w", i, err)
		}
		s.planes = append(s.planes, plane)
		s.channels = append(s.channels, fmt.Sprintf("C%d", i))
	}
	return s, nil
}

// SetChannelNames overrides the default channel names. The count must match
// the number of channels in the image.
func (s *FileServer) SetChannelNames(names []string) error {
	if len(names) != len(s.channels) {
		return fmt.Errorf("got %d names for %d channels", len(names), len(s.channels))
	}
	s.channels = append([]string(nil), names...)
	return nil
}

func (s *FileServer) Name() string            { return s.name }
func (s *FileServer) Width() int              { return s.width }
func (s *FileServer) Height() int             { return s.height }
func (s *FileServer) NumChannels() int        { return len(s.channels) }
func (s *FileServer) ChannelName(i int) string { return s.channels[i] }
func (s *FileServer) NumZ() int               { return 1 }

// ReadRegion crops the requested rectangle from the decoded channel plane.
func (s *FileServer) ReadRegion(req RegionRequest) (*Plane, error) {
	if req.Channel < 0 || req.Channel >= len(s.planes) {
		return nil, fmt.Errorf("channel %d out of range", req.Channel)
	}
	if req.Z != 0 {
		return nil, fmt.Errorf("flat image has no plane %d", req.Z)
	}
	return cropPlane(s.planes[req.Channel], req.Region)
}

// matToPlane converts a single-channel Mat into a 16-bit plane buffer.
// 8-bit sources are widened so intensity scales stay comparable across
// bit depths.
func matToPlane(m *gocv.Mat) (*Plane, error) {
	w, h := m.Cols(), m.Rows()
	plane := NewPlane(w, h)

	switch m.Type() {
	case gocv.MatTypeCV8U:
		data, err := m.DataPtrUint8()
		if err != nil {
			return nil, err
		}
		for i, v := range data {
			plane.Pix[i] = uint16(v) << 8
		}
	case gocv.MatTypeCV16U:
		data, err := m.DataPtrUint16()
		if err != nil {
			return nil, err
		}
		copy(plane.Pix, data)
	default:
		return nil, fmt.Errorf("unsupported pixel depth %v", m.Type())
	}
	return plane, nil
}

var _ ImageServer = (*FileServer)(nil)
var _ ImageServer = (*MemServer)(nil)
