// Package project provides project file handling and persistence: the set
// of images a detection or training run operates over, with their
// annotation files.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ImageRef is one image entry in a project. Paths are stored relative to
// the project file where possible.
type ImageRef struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Annotations string `json:"annotations,omitempty"`
}

// File represents a project file (.spotproj).
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	Images []ImageRef `json:"images,omitempty"`
}

// New creates a new empty project.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
	}
}

// Load loads a project from a .spotproj file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("error parsing project file: %w", err)
	}

	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// AddImage appends an image entry, relativizing its paths against the
// project file.
func (p *File) AddImage(projectPath string, ref ImageRef) {
	ref.Path = relativize(projectPath, ref.Path)
	ref.Annotations = relativize(projectPath, ref.Annotations)
	p.Images = append(p.Images, ref)
	p.Modified = time.Now()
}

// ImagePath returns the absolute path of an image entry.
func (p *File) ImagePath(projectPath string, ref ImageRef) string {
	return absolutize(projectPath, ref.Path)
}

// AnnotationsPath returns the absolute path of an entry's annotation file,
// or "" if it has none.
func (p *File) AnnotationsPath(projectPath string, ref ImageRef) string {
	return absolutize(projectPath, ref.Annotations)
}

func relativize(projectPath, path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(filepath.Dir(projectPath), path)
	if err != nil {
		return path
	}
	return rel
}

func absolutize(projectPath, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(projectPath), path)
}
