package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spot-batch/internal/env"
	"spot-batch/internal/runner"
	"spot-batch/internal/spots"
	"spot-batch/pkg/geometry"
)

// ErrEmptyDataset is returned when no training regions exist in the
// project.
var ErrEmptyDataset = errors.New("no training regions found")

// Trainer runs one training cycle: build the dataset, train the model,
// then measure it against the validation split.
type Trainer struct {
	Env     *env.Environment
	Runner  runner.Runner
	Builder *DatasetBuilder
	Cfg     spots.Config
	Log     zerolog.Logger
}

// Train builds the dataset under the environment's training root, trains a
// model into <outputRoot>/<timestamp>_<suffix>_model and runs QC on the
// validation split. It returns the model directory.
func (t *Trainer) Train(ctx context.Context, outputRoot, suffix string) (string, error) {
	var modelDir string
	err := spots.RunPooled(t.Cfg.Threads, func() error {
		var err error
		modelDir, err = t.train(ctx, outputRoot, suffix)
		return err
	})
	return modelDir, err
}

func (t *Trainer) train(ctx context.Context, outputRoot, suffix string) (string, error) {
	datasetRoot := t.Env.TrainingRoot
	if t.Cfg.CleanCache {
		if err := os.RemoveAll(datasetRoot); err != nil {
			return "", fmt.Errorf("error cleaning dataset directory: %w", err)
		}
	}

	n, err := t.Builder.Build(datasetRoot)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyDataset
	}

	modelDir := filepath.Join(outputRoot,
		time.Now().Format("20060102-150405")+"_"+suffix+"_model")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating model directory: %w", err)
	}

	args := TrainArgs(datasetRoot, modelDir, t.Cfg)
	if err := t.Runner.Run(ctx, t.Env.Command(env.CmdTrain), args); err != nil {
		return "", fmt.Errorf("training run failed: %w", err)
	}
	t.Log.Info().Str("model", modelDir).Msg("Training complete")

	// QC is a report, not a gate: a failure here leaves the trained model
	// in place.
	if err := t.qc(ctx, datasetRoot, outputRoot, modelDir); err != nil {
		t.Log.Warn().Err(err).Msg("QC stage failed")
	}
	return modelDir, nil
}

// qc copies the validation tiles aside, predicts on them with the fresh
// model and writes per-tile precision/recall/F1 plus a summary.
func (t *Trainer) qc(ctx context.Context, datasetRoot, outputRoot, modelDir string) error {
	valDir := filepath.Join(datasetRoot, "val")
	qcDir := filepath.Join(outputRoot, "QC")
	if err := os.MkdirAll(qcDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(valDir)
	if err != nil {
		return err
	}
	copied := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		src := filepath.Join(valDir, entry.Name())
		if err := copyPath(src, filepath.Join(qcDir, entry.Name())); err != nil {
			return fmt.Errorf("error copying validation tile: %w", err)
		}
		copied++
	}
	if copied == 0 {
		t.Log.Info().Msg("No validation tiles, skipping QC")
		return nil
	}

	cfg := t.Cfg.WithModelDir(modelDir)
	if err := t.Runner.Run(ctx, t.Env.Command(env.CmdPredict), spots.PredictArgs(qcDir, cfg)); err != nil {
		return fmt.Errorf("validation prediction failed: %w", err)
	}

	var ms []Metrics
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		tile := strings.TrimSuffix(entry.Name(), ".csv")
		truth, err := ReadCoordinates(filepath.Join(valDir, entry.Name()), cfg.Volumetric)
		if err != nil {
			t.Log.Warn().Err(err).Str("tile", tile).Msg("Skipping unreadable ground truth")
			continue
		}
		predicted, err := t.readPredictions(qcDir, tile)
		if err != nil {
			t.Log.Warn().Err(err).Str("tile", tile).Msg("Skipping unreadable predictions")
			continue
		}
		ms = append(ms, Match(tile, truth, predicted, DefaultMatchRadius))
	}

	s := Summarize(ms)
	if err := WriteMetrics(filepath.Join(qcDir, "QC_metrics.csv"), ms, s); err != nil {
		return err
	}
	t.Log.Info().
		Float64("precision", s.PrecisionMean).
		Float64("recall", s.RecallMean).
		Float64("f1", s.F1Mean).
		Msg("QC complete")
	return nil
}

func (t *Trainer) readPredictions(qcDir, tile string) ([]geometry.Point, error) {
	path, ok := spots.FindResultFile(qcDir, tile)
	if !ok {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := spots.ParseResults(f, t.Cfg.Volumetric)
	if err != nil {
		return nil, err
	}
	points := make([]geometry.Point, len(rows))
	for i, r := range rows {
		points[i] = geometry.Point{X: r.X, Y: r.Y}
	}
	return points, nil
}

// copyPath copies a tile file, or a whole container directory for zarr
// tiles.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyPath(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
