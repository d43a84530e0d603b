// Package spots coordinates batch spot detection: resolving channels,
// caching and exporting region tiles, invoking the external model once per
// run, and reconciling its per-tile results back into the annotation
// hierarchy.
package spots

import (
	"errors"

	"spot-batch/internal/pyramid"
	"spot-batch/internal/runner"
)

// ErrNoChannels is returned when a run is configured without any channel
// selection.
var ErrNoChannels = errors.New("no channels selected")

// ClassMode controls what class new detections are assigned.
type ClassMode int

const (
	// ClassNone leaves detections unclassified.
	ClassNone ClassMode = iota
	// ClassFixed assigns the configured FixedClass to every detection.
	ClassFixed
	// ClassPerChannel uses each channel's name as the class.
	ClassPerChannel
)

// Config holds the options of one detection or training run. It is an
// immutable value: the With methods return modified copies. Sentinels mark
// options as unset: a threshold or distance <= 0, an empty Subpixel, a
// ZEnd of -1 (last plane) and Threads 0 (run synchronously).
type Config struct {
	// Channels selects which image channels to process, each given as a
	// channel name or an integer index. Required.
	Channels []string

	// PretrainedModel names a bundled model; ModelDir points at a custom
	// model directory. Both may be set, in which case the directory is
	// passed last and wins downstream.
	PretrainedModel string
	ModelDir        string

	// ProbabilityThreshold and MinDistance tune the model. Values <= 0 are
	// unset and omitted from the invocation.
	ProbabilityThreshold float64
	MinDistance          float64

	// Subpixel selects the subpixel refinement mode; empty means unset.
	Subpixel string

	// ForceCPU pins inference to the CPU instead of automatic device
	// selection.
	ForceCPU bool

	// Volumetric enables 3-D mode over the inclusive plane range
	// [ZStart, ZEnd]; ZEnd -1 means the last plane of the image.
	Volumetric bool
	ZStart     int
	ZEnd       int

	// Format selects the tile container for 2-D runs. Volumetric runs
	// always use the zarr container since it is the multi-plane format.
	Format pyramid.Format

	// ClassMode and FixedClass control class assignment on new detections.
	ClassMode  ClassMode
	FixedClass string

	// CleanCache deletes the image's tile cache before exporting.
	// ClearChildren removes all existing detections from the parents first;
	// ClearChannelChildren removes only those classed as a requested
	// channel.
	CleanCache           bool
	ClearChildren        bool
	ClearChannelChildren bool

	// Threads bounds the worker pool. Zero runs on the caller's goroutine.
	Threads int

	// Extra flags are passed verbatim to the external process.
	Extra []runner.ExtraArg

	// Training options.
	Epochs           int
	LearningRate     float64
	FineTuneFrom     string
	NoAugment        bool
	IncludeNegatives bool
	PointClasses     []string
}

// DefaultConfig returns the documented defaults: no model override, all
// tuning sentinels unset, 2-D TIFF tiles, per-channel classes, synchronous
// execution.
func DefaultConfig() Config {
	return Config{
		ProbabilityThreshold: -1,
		MinDistance:          -1,
		ZEnd:                 -1,
		ClassMode:            ClassPerChannel,
		Epochs:               200,
		LearningRate:         -1,
	}
}

// Validate fails fast on options that cannot produce a run.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return ErrNoChannels
	}
	return nil
}

// TileFormat returns the effective container format: volumetric runs need
// multi-plane tiles and therefore zarr.
func (c Config) TileFormat() pyramid.Format {
	if c.Volumetric {
		return pyramid.FormatZarr
	}
	return c.Format
}

// Device returns the device argument for the external process.
func (c Config) Device() string {
	if c.ForceCPU {
		return "cpu"
	}
	return "auto"
}

// WithChannels selects the channels to process.
func (c Config) WithChannels(channels ...string) Config {
	c.Channels = channels
	return c
}

// WithPretrainedModel selects a bundled model by name.
func (c Config) WithPretrainedModel(name string) Config {
	c.PretrainedModel = name
	return c
}

// WithModelDir points at a custom model directory.
func (c Config) WithModelDir(dir string) Config {
	c.ModelDir = dir
	return c
}

// WithProbabilityThreshold sets the detection probability threshold.
func (c Config) WithProbabilityThreshold(t float64) Config {
	c.ProbabilityThreshold = t
	return c
}

// WithMinDistance sets the minimum inter-detection distance.
func (c Config) WithMinDistance(d float64) Config {
	c.MinDistance = d
	return c
}

// WithSubpixel sets the subpixel refinement mode.
func (c Config) WithSubpixel(mode string) Config {
	c.Subpixel = mode
	return c
}

// WithForceCPU pins inference to the CPU.
func (c Config) WithForceCPU(force bool) Config {
	c.ForceCPU = force
	return c
}

// WithVolumetric enables 3-D mode over [zStart, zEnd]; pass zEnd -1 for
// the last plane.
func (c Config) WithVolumetric(zStart, zEnd int) Config {
	c.Volumetric = true
	c.ZStart = zStart
	c.ZEnd = zEnd
	return c
}

// WithFormat selects the 2-D tile container format.
func (c Config) WithFormat(f pyramid.Format) Config {
	c.Format = f
	return c
}

// WithFixedClass assigns one class to every detection.
func (c Config) WithFixedClass(class string) Config {
	c.ClassMode = ClassFixed
	c.FixedClass = class
	return c
}

// WithNoClass leaves detections unclassified.
func (c Config) WithNoClass() Config {
	c.ClassMode = ClassNone
	c.FixedClass = ""
	return c
}

// WithCleanCache forces a cache wipe before export.
func (c Config) WithCleanCache(clean bool) Config {
	c.CleanCache = clean
	return c
}

// WithClearChildren removes existing detections from the parents before a
// run.
func (c Config) WithClearChildren(clear bool) Config {
	c.ClearChildren = clear
	return c
}

// WithClearChannelChildren removes existing detections classed as one of
// the requested channels before a run.
func (c Config) WithClearChannelChildren(clear bool) Config {
	c.ClearChannelChildren = clear
	return c
}

// WithThreads bounds the worker pool; zero runs synchronously.
func (c Config) WithThreads(n int) Config {
	c.Threads = n
	return c
}

// WithExtra appends a pass-through flag for the external process.
func (c Config) WithExtra(flag string, value *string) Config {
	extra := make([]runner.ExtraArg, len(c.Extra), len(c.Extra)+1)
	copy(extra, c.Extra)
	c.Extra = append(extra, runner.ExtraArg{Flag: flag, Value: value})
	return c
}

// WithEpochs sets the training epoch count.
func (c Config) WithEpochs(n int) Config {
	c.Epochs = n
	return c
}

// WithLearningRate sets the training learning rate; values <= 0 are unset.
func (c Config) WithLearningRate(lr float64) Config {
	c.LearningRate = lr
	return c
}

// WithFineTuneFrom fine-tunes from an existing model directory.
func (c Config) WithFineTuneFrom(dir string) Config {
	c.FineTuneFrom = dir
	return c
}

// WithNoAugment disables training augmentation.
func (c Config) WithNoAugment(disable bool) Config {
	c.NoAugment = disable
	return c
}

// WithIncludeNegatives writes empty coordinate files for training regions
// without any points.
func (c Config) WithIncludeNegatives(include bool) Config {
	c.IncludeNegatives = include
	return c
}

// WithPointClasses filters training points to the given classes.
func (c Config) WithPointClasses(classes ...string) Config {
	c.PointClasses = classes
	return c
}
