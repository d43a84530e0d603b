package training

import (
	"reflect"
	"testing"

	"spot-batch/internal/runner"
	"spot-batch/internal/spots"
)

func TestTrainArgsDefaults(t *testing.T) {
	args := TrainArgs("/data/dataset", "/models/out", spots.DefaultConfig().WithChannels("SPOT"))
	want := []string{"/data/dataset", "--outdir", "/models/out", "--num-epochs", "200", "--device", "auto"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("TrainArgs = %v, want %v", args, want)
	}
}

func TestTrainArgsAllOptions(t *testing.T) {
	cfg := spots.DefaultConfig().
		WithChannels("SPOT").
		WithEpochs(75).
		WithLearningRate(0.001).
		WithNoAugment(true).
		WithFineTuneFrom("/models/base").
		WithVolumetric(0, -1).
		WithForceCPU(true).
		WithExtra("--seed", runner.StringValue("42"))

	args := TrainArgs("/ds", "/out", cfg)
	want := []string{
		"/ds", "--outdir", "/out",
		"--num-epochs", "75",
		"--lr", "0.001",
		"--augment", "False",
		"--finetune-from", "/models/base",
		"--is-3d", "True",
		"--device", "cpu",
		"--seed", "42",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("TrainArgs = %v, want %v", args, want)
	}
}
