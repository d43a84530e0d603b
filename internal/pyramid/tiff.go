package pyramid

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
)

// writeTIFF encodes a plane as a 16-bit grayscale TIFF file.
func writeTIFF(path string, plane *Plane) error {
	img := image.NewGray16(image.Rect(0, 0, plane.Width, plane.Height))
	for y := 0; y < plane.Height; y++ {
		for x := 0; x < plane.Width; x++ {
			v := plane.At(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(v >> 8)
			img.Pix[i+1] = uint8(v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create tile directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tile: %w", err)
	}
	defer f.Close()

	opts := &tiff.Options{Compression: tiff.Deflate}
	if err := tiff.Encode(f, img, opts); err != nil {
		return fmt.Errorf("failed to encode tiff: %w", err)
	}
	return nil
}

// ReadTIFF decodes a TIFF tile back into a plane buffer.
func ReadTIFF(path string) (*Plane, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile: %w", err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tiff: %w", err)
	}

	bounds := img.Bounds()
	plane := NewPlane(bounds.Dx(), bounds.Dy())
	for y := 0; y < plane.Height; y++ {
		for x := 0; x < plane.Width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			plane.Set(x, y, uint16(r))
		}
	}
	return plane, nil
}
