// Package env holds the runtime environment: where the external model's
// python environment lives and where exported tiles are cached. It is
// loaded once at startup and passed explicitly to every component; there is
// no process-wide state.
package env

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// The two external entry points, resolved relative to the configured
// python executable.
const (
	CmdPredict = "spotflow-predict"
	CmdTrain   = "spotflow-train"
)

// ErrNoPythonPath is returned when the environment lacks the required
// python executable path.
var ErrNoPythonPath = errors.New("python path is not configured")

// Environment is the runtime configuration shared by detection and
// training runs.
type Environment struct {
	// PythonPath is the python executable of the environment that has the
	// model installed. Required.
	PythonPath string `yaml:"pythonPath"`

	// CondaPath optionally points at a conda executable used to activate
	// the environment before running.
	CondaPath string `yaml:"condaPath"`

	// CacheRoot is where exported tiles and results live. Defaults to
	// <working dir>/spot-temp when empty.
	CacheRoot string `yaml:"cacheRoot"`

	// TrainingRoot is where training datasets and trained models are
	// written. Defaults to <cache root>/training when empty.
	TrainingRoot string `yaml:"trainingRoot"`
}

// Load reads an environment file. A missing file is an error: the caller
// must know where its python environment is.
func Load(path string) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading environment file: %w", err)
	}
	var e Environment
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("error parsing environment file: %w", err)
	}
	e.applyDefaults()
	return &e, nil
}

// Save writes the environment to a YAML file.
func Save(e *Environment, path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshaling environment: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating environment directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing environment file: %w", err)
	}
	return nil
}

func (e *Environment) applyDefaults() {
	if e.CacheRoot == "" {
		e.CacheRoot = "spot-temp"
	}
	if e.TrainingRoot == "" {
		e.TrainingRoot = filepath.Join(e.CacheRoot, "training")
	}
}

// Validate fails fast on a configuration that cannot run anything.
func (e *Environment) Validate() error {
	if e.PythonPath == "" {
		return ErrNoPythonPath
	}
	return nil
}

// Command resolves an external entry point against the python environment:
// unix and macOS installs place a same-named sibling binary next to python,
// other platforms keep executables under a Scripts folder with an .exe
// suffix. An empty name returns the python executable itself.
func (e *Environment) Command(name string) string {
	return e.commandFor(name, runtime.GOOS)
}

func (e *Environment) commandFor(name, goos string) string {
	if name == "" {
		return e.PythonPath
	}
	dir := filepath.Dir(e.PythonPath)
	switch goos {
	case "linux", "darwin":
		return filepath.Join(dir, name)
	default:
		return filepath.Join(dir, "Scripts", name+".exe")
	}
}
