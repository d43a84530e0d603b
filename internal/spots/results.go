package spots

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Row is one parsed detection in tile-local coordinates. Z is relative to
// the exported range's start; 2-D results leave it zero.
type Row struct {
	Z           int
	Y           float64
	X           float64
	Intensity   float64
	Probability float64
}

// FindResultFile looks for the result file of a tile key: any file in the
// directory whose name contains the key and ends in .csv. The first match
// in lexical order wins when several exist.
func FindResultFile(dir, key string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.Contains(name, key) && strings.HasSuffix(name, ".csv") {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[0]), true
}

// ParseResults reads a result file: one header line, then one detection per
// line. Volumetric files carry z,y,x,intensity,probability; 2-D files omit
// the leading z.
func ParseResults(r io.Reader, volumetric bool) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading result file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	want := 4
	if volumetric {
		want = 5
	}

	var rows []Row
	for i, rec := range records[1:] {
		if len(rec) < want {
			return nil, fmt.Errorf("result row %d has %d fields, want %d", i+2, len(rec), want)
		}
		vals := make([]float64, want)
		for j := 0; j < want; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("result row %d: %w", i+2, err)
			}
			vals[j] = v
		}

		var row Row
		if volumetric {
			row = Row{Z: int(math.Round(vals[0])), Y: vals[1], X: vals[2], Intensity: vals[3], Probability: vals[4]}
		} else {
			row = Row{Y: vals[0], X: vals[1], Intensity: vals[2], Probability: vals[3]}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
