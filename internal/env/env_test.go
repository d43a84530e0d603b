package env

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	content := "pythonPath: /opt/venv/bin/python\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	e, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.PythonPath != "/opt/venv/bin/python" {
		t.Errorf("PythonPath = %q", e.PythonPath)
	}
	if e.CacheRoot != "spot-temp" {
		t.Errorf("CacheRoot default = %q, want spot-temp", e.CacheRoot)
	}
	if want := filepath.Join("spot-temp", "training"); e.TrainingRoot != want {
		t.Errorf("TrainingRoot default = %q, want %q", e.TrainingRoot, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing environment file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "env.yaml")
	e := &Environment{
		PythonPath:   "/env/bin/python",
		CondaPath:    "/opt/conda/bin/conda",
		CacheRoot:    "/data/cache",
		TrainingRoot: "/data/training",
	}
	if err := Save(e, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *got != *e {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestValidate(t *testing.T) {
	e := &Environment{}
	if err := e.Validate(); !errors.Is(err, ErrNoPythonPath) {
		t.Errorf("Validate = %v, want ErrNoPythonPath", err)
	}
	e.PythonPath = "/usr/bin/python3"
	if err := e.Validate(); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestCommandResolution(t *testing.T) {
	e := &Environment{PythonPath: filepath.Join("/venv", "bin", "python")}

	tests := []struct {
		goos string
		name string
		want string
	}{
		{"linux", CmdPredict, filepath.Join("/venv", "bin", CmdPredict)},
		{"darwin", CmdTrain, filepath.Join("/venv", "bin", CmdTrain)},
		{"windows", CmdPredict, filepath.Join("/venv", "bin", "Scripts", CmdPredict+".exe")},
		{"linux", "", filepath.Join("/venv", "bin", "python")},
	}
	for _, tt := range tests {
		if got := e.commandFor(tt.name, tt.goos); got != tt.want {
			t.Errorf("commandFor(%q, %q) = %q, want %q", tt.name, tt.goos, got, tt.want)
		}
	}
}
