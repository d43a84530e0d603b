package pyramid

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// zarrArrayMeta is the zarr v2 .zarray document. Chunks are one full plane
// (1 z, 1 channel) so each exported Z slice maps to exactly one chunk file.
type zarrArrayMeta struct {
	Shape      []int       `json:"shape"`
	Chunks     []int       `json:"chunks"`
	DType      string      `json:"dtype"`
	Compressor interface{} `json:"compressor"`
	FillValue  int         `json:"fill_value"`
	Order      string      `json:"order"`
	Filters    interface{} `json:"filters"`
	ZarrFormat int         `json:"zarr_format"`
}

// writeZarr exports the requested region and inclusive Z range as a minimal
// OME-Zarr container: a group with a single full-resolution array whose
// axes are (z, c, y, x).
func writeZarr(s ImageServer, req TileRequest) error {
	arrayDir := filepath.Join(req.Path, "0")
	if err := os.MkdirAll(arrayDir, 0o755); err != nil {
		return fmt.Errorf("failed to create zarr container: %w", err)
	}

	nz := req.ZEnd - req.ZStart + 1
	w, h := req.Region.Width, req.Region.Height

	if err := writeJSON(filepath.Join(req.Path, ".zgroup"), map[string]int{"zarr_format": 2}); err != nil {
		return err
	}
	attrs := map[string]interface{}{
		"multiscales": []map[string]interface{}{{
			"version": "0.4",
			"axes": []map[string]string{
				{"name": "z", "type": "space"},
				{"name": "c", "type": "channel"},
				{"name": "y", "type": "space"},
				{"name": "x", "type": "space"},
			},
			"datasets": []map[string]string{{"path": "0"}},
		}},
	}
	if err := writeJSON(filepath.Join(req.Path, ".zattrs"), attrs); err != nil {
		return err
	}
	meta := zarrArrayMeta{
		Shape:      []int{nz, 1, h, w},
		Chunks:     []int{1, 1, h, w},
		DType:      "<u2",
		FillValue:  0,
		Order:      "C",
		ZarrFormat: 2,
	}
	if err := writeJSON(filepath.Join(arrayDir, ".zarray"), meta); err != nil {
		return err
	}

	for z := req.ZStart; z <= req.ZEnd; z++ {
		plane, err := s.ReadRegion(RegionRequest{Region: req.Region, Channel: req.Channel, Z: z})
		if err != nil {
			return fmt.Errorf("failed to read plane %d: %w", z, err)
		}
		chunk := make([]byte, len(plane.Pix)*2)
		for i, v := range plane.Pix {
			binary.LittleEndian.PutUint16(chunk[i*2:], v)
		}
		name := fmt.Sprintf("%d.0.0.0", z-req.ZStart)
		if err := os.WriteFile(filepath.Join(arrayDir, name), chunk, 0o644); err != nil {
			return fmt.Errorf("failed to write chunk %s: %w", name, err)
		}
	}
	return nil
}

// ReadZarrPlane reads one plane back out of a zarr tile container.
// The z index is relative to the container, not the source image.
func ReadZarrPlane(path string, z int) (*Plane, error) {
	arrayDir := filepath.Join(path, "0")

	data, err := os.ReadFile(filepath.Join(arrayDir, ".zarray"))
	if err != nil {
		return nil, fmt.Errorf("failed to read zarr metadata: %w", err)
	}
	var meta zarrArrayMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse zarr metadata: %w", err)
	}
	if len(meta.Shape) != 4 {
		return nil, fmt.Errorf("unexpected zarr shape %v", meta.Shape)
	}
	h, w := meta.Shape[2], meta.Shape[3]

	chunk, err := os.ReadFile(filepath.Join(arrayDir, fmt.Sprintf("%d.0.0.0", z)))
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	if len(chunk) != w*h*2 {
		return nil, fmt.Errorf("chunk size %d does not match %dx%d plane", len(chunk), w, h)
	}

	plane := NewPlane(w, h)
	for i := range plane.Pix {
		plane.Pix[i] = binary.LittleEndian.Uint16(chunk[i*2:])
	}
	return plane, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
