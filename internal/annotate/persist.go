package annotate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// annotationFile is the on-disk shape of a hierarchy.
type annotationFile struct {
	Version     int           `json:"version"`
	Annotations []*Annotation `json:"annotations"`
}

// Load reads a hierarchy from a JSON annotation file. A missing file yields
// an empty hierarchy, not an error.
func Load(path string) (*Hierarchy, error) {
	h := NewHierarchy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	var file annotationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}
	for _, a := range file.Annotations {
		h.Add(a)
	}
	return h, nil
}

// Save writes the hierarchy to a JSON annotation file. Detections are
// regenerated per run and are not persisted.
func Save(h *Hierarchy, path string) error {
	file := annotationFile{
		Version:     1,
		Annotations: h.Annotations(),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize annotations: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
