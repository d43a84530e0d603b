package training

import (
	"strconv"

	"spot-batch/internal/runner"
	"spot-batch/internal/spots"
)

// TrainArgs builds the argument list for one training run over a dataset
// directory holding train/ and val/ splits.
func TrainArgs(datasetDir, modelDir string, cfg spots.Config) []string {
	args := []string{datasetDir, "--outdir", modelDir}

	if cfg.Epochs > 0 {
		args = append(args, "--num-epochs", strconv.Itoa(cfg.Epochs))
	}
	if cfg.LearningRate > 0 {
		args = append(args, "--lr", strconv.FormatFloat(cfg.LearningRate, 'g', -1, 64))
	}
	if cfg.NoAugment {
		args = append(args, "--augment", "False")
	}
	if cfg.FineTuneFrom != "" {
		args = append(args, "--finetune-from", cfg.FineTuneFrom)
	}
	if cfg.Volumetric {
		args = append(args, "--is-3d", "True")
	}
	args = append(args, "--device", cfg.Device())

	return runner.AppendExtras(args, cfg.Extra)
}
