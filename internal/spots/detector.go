package spots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"spot-batch/internal/annotate"
	"spot-batch/internal/env"
	"spot-batch/internal/pyramid"
	"spot-batch/internal/runner"
)

// poolWait caps how long a pooled run may take before the call gives up.
// Inference over a large batch can legitimately run for days.
const poolWait = 48 * time.Hour

// Detector runs the full detection pipeline for one image: channel
// resolution, tile cache partitioning, export, one external inference run,
// and result reconciliation.
type Detector struct {
	Env       *env.Environment
	Server    pyramid.ImageServer
	Hierarchy *annotate.Hierarchy
	Runner    runner.Runner
	Cfg       Config
	Log       zerolog.Logger
}

// Detect processes the given parent annotations. With Threads > 0 the whole
// call runs as one unit of work on a bounded pool and is awaited; otherwise
// it runs on the caller's goroutine. The external process itself is always
// a single invocation per call.
func (d *Detector) Detect(ctx context.Context, parents []*annotate.Annotation) error {
	if err := d.Cfg.Validate(); err != nil {
		return err
	}
	if err := d.Env.Validate(); err != nil {
		return err
	}
	if len(parents) == 0 {
		d.Log.Warn().Msg("No parent annotations given, nothing to detect")
		return nil
	}

	return RunPooled(d.Cfg.Threads, func() error {
		return d.detect(ctx, parents)
	})
}

func (d *Detector) detect(ctx context.Context, parents []*annotate.Annotation) error {
	bindings, err := ResolveChannels(d.Cfg.Channels, d.Server)
	if err != nil {
		return err
	}

	zStart, zEnd := d.zRange()

	d.clearExisting(parents, bindings)

	cache := NewTileCache(d.Env.CacheRoot, d.Server.Name(), d.Cfg.Volumetric, d.Cfg.TileFormat())
	if d.Cfg.CleanCache {
		if err := cache.Clean(); err != nil {
			return err
		}
	} else if err := cache.EnsureDir(); err != nil {
		return err
	}

	exporter := &Exporter{Server: d.Server, Cache: cache, Threads: d.Cfg.Threads, Log: d.Log}

	type channelBatch struct {
		channel ChannelBinding
		tiles   []Tile
	}
	var batches []channelBatch
	for _, b := range bindings {
		cached, missing := cache.Partition(parents, b.Name, d.Cfg.Volumetric, zStart, zEnd)
		exported := exporter.Export(missing, b.Index)
		d.Log.Info().
			Str("channel", b.Name).
			Int("cached", len(cached)).
			Int("exported", len(exported)).
			Msg("Tiles ready")
		batches = append(batches, channelBatch{channel: b, tiles: append(cached, exported...)})
	}

	// One inference process per run; it scans the whole cache directory.
	args := PredictArgs(cache.Dir, d.Cfg)
	if err := d.Runner.Run(ctx, d.Env.Command(env.CmdPredict), args); err != nil {
		return fmt.Errorf("inference run failed: %w", err)
	}

	rec := &Reconciler{Hierarchy: d.Hierarchy, Cfg: d.Cfg, Log: d.Log}
	total := 0
	for _, b := range batches {
		n := rec.Reconcile(cache.Dir, b.channel, b.tiles)
		d.Log.Info().Str("channel", b.channel.Name).Int("detections", n).Msg("Channel reconciled")
		total += n
	}
	d.Log.Info().Int("detections", total).Msg("Detection complete")
	return nil
}

// zRange resolves the effective plane range. An invalid requested range
// falls back to the whole stack with a warning.
func (d *Detector) zRange() (int, int) {
	if !d.Cfg.Volumetric {
		return 0, 0
	}
	last := d.Server.NumZ() - 1
	start, end := d.Cfg.ZStart, d.Cfg.ZEnd
	if end < 0 {
		end = last
	}
	if start < 0 || start > end || end > last {
		d.Log.Warn().
			Int("zStart", d.Cfg.ZStart).
			Int("zEnd", d.Cfg.ZEnd).
			Msg("Invalid z range, using whole stack")
		return 0, last
	}
	return start, end
}

func (d *Detector) clearExisting(parents []*annotate.Annotation, bindings []ChannelBinding) {
	switch {
	case d.Cfg.ClearChildren:
		for _, p := range parents {
			p.ClearChildren()
		}
	case d.Cfg.ClearChannelChildren:
		rec := &Reconciler{Cfg: d.Cfg}
		classes := make(map[string]bool, len(bindings))
		for _, b := range bindings {
			if class := rec.detectionClass(b); class != "" {
				classes[class] = true
			}
		}
		if len(classes) == 0 {
			return
		}
		removed := 0
		for _, p := range parents {
			removed += p.ClearChildrenWithClasses(classes)
		}
		if removed > 0 {
			d.Log.Info().Int("removed", removed).Msg("Cleared previous channel detections")
		}
	}
}
