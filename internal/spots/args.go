package spots

import (
	"strconv"

	"spot-batch/internal/pyramid"
	"spot-batch/internal/runner"
)

// PredictArgs builds the argument list for one prediction run over a whole
// cache directory. Options at their unset sentinels are omitted. When both
// a pretrained model and a model directory are configured, both are passed
// with the directory last so it wins downstream.
func PredictArgs(cacheDir string, cfg Config) []string {
	args := []string{cacheDir, "--out-dir", cacheDir, "--verbose"}

	if cfg.TileFormat() == pyramid.FormatZarr {
		args = append(args, "--zarr-component", "s0")
	}
	if cfg.PretrainedModel != "" {
		args = append(args, "--pretrained-model", cfg.PretrainedModel)
	}
	if cfg.ModelDir != "" {
		args = append(args, "--model-dir", cfg.ModelDir)
	}
	if cfg.ProbabilityThreshold > 0 {
		args = append(args, "--probability-threshold", formatFloat(cfg.ProbabilityThreshold))
	}
	if cfg.MinDistance > 0 {
		args = append(args, "--min-distance", formatFloat(cfg.MinDistance))
	}
	if cfg.Subpixel != "" {
		args = append(args, "--subpix", cfg.Subpixel)
	}
	args = append(args, "--device", cfg.Device())

	return runner.AppendExtras(args, cfg.Extra)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
