package spots

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindResultFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"SPOT_0_0_10_10_z0.ome.tiff",
		"SPOT_0_0_10_10_z0.points2.csv",
		"SPOT_0_0_10_10_z0.points1.csv",
		"OTHER_0_0_10_10_z0.csv",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	path, ok := FindResultFile(dir, "SPOT_0_0_10_10_z0")
	if !ok {
		t.Fatal("result file not found")
	}
	// First lexical match wins.
	if filepath.Base(path) != "SPOT_0_0_10_10_z0.points1.csv" {
		t.Errorf("found %q", filepath.Base(path))
	}

	if _, ok := FindResultFile(dir, "GFP_0_0_10_10_z0"); ok {
		t.Error("found a result file for a key without one")
	}
}

func TestParseResults2D(t *testing.T) {
	in := "y,x,intensity,probability\n10,10,5.0,0.9\n2.5,3.5,1.0,0.5\n"
	rows, err := ParseResults(strings.NewReader(in), false)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0] != (Row{Y: 10, X: 10, Intensity: 5.0, Probability: 0.9}) {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Y != 2.5 || rows[1].X != 3.5 {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestParseResultsVolumetric(t *testing.T) {
	in := "z,y,x,intensity,probability\n3,7,8,2.0,0.8\n"
	rows, err := ParseResults(strings.NewReader(in), true)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0] != (Row{Z: 3, Y: 7, X: 8, Intensity: 2.0, Probability: 0.8}) {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestParseResultsEmpty(t *testing.T) {
	rows, err := ParseResults(strings.NewReader("y,x,intensity,probability\n"), false)
	if err != nil {
		t.Fatalf("ParseResults failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows from header-only file", len(rows))
	}
}

func TestParseResultsMalformed(t *testing.T) {
	for _, in := range []string{
		"y,x,intensity,probability\n1,2\n",
		"y,x,intensity,probability\noops,2,3,4\n",
	} {
		if _, err := ParseResults(strings.NewReader(in), false); err == nil {
			t.Errorf("ParseResults(%q) succeeded, want error", in)
		}
	}
}
