// Command spotbatch runs batch spot detection or model training over the
// images of a project.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"spot-batch/internal/annotate"
	"spot-batch/internal/env"
	"spot-batch/internal/project"
	"spot-batch/internal/pyramid"
	"spot-batch/internal/runner"
	"spot-batch/internal/spots"
	"spot-batch/internal/training"
)

func main() {
	mode := flag.String("mode", "detect", "Mode: detect, train or help")
	envPath := flag.String("env", "", "Path to the environment YAML file")
	projectPath := flag.String("project", "", "Path to the project file (.spotproj)")
	imagePath := flag.String("image", "", "Path to a single image (detect mode without a project)")
	annotationsPath := flag.String("annotations", "", "Path to the annotation file for -image")
	channels := flag.String("channels", "", "Comma-separated channel names or indices")
	pretrained := flag.String("pretrained", "", "Pretrained model name")
	modelDir := flag.String("model-dir", "", "Custom model directory")
	threshold := flag.Float64("threshold", -1, "Probability threshold (<= 0 unset)")
	minDistance := flag.Float64("min-distance", -1, "Minimum inter-detection distance (<= 0 unset)")
	subpixel := flag.String("subpix", "", "Subpixel refinement mode")
	cpu := flag.Bool("cpu", false, "Force CPU inference")
	volumetric := flag.Bool("3d", false, "Volumetric mode")
	zStart := flag.Int("z-start", 0, "First plane of the volumetric range")
	zEnd := flag.Int("z-end", -1, "Last plane of the volumetric range (-1 = last)")
	fixedClass := flag.String("class", "", "Fixed class for detections (default: per-channel)")
	noClass := flag.Bool("no-class", false, "Leave detections unclassified")
	cleanCache := flag.Bool("clean-cache", false, "Delete cached tiles before exporting")
	clearAll := flag.Bool("clear", false, "Remove existing detections from the parents first")
	clearChannels := flag.Bool("clear-channels", false, "Remove existing detections of the requested channels first")
	threads := flag.Int("threads", 0, "Worker pool size (0 = synchronous)")
	epochs := flag.Int("epochs", 200, "Training epochs")
	learningRate := flag.Float64("lr", -1, "Training learning rate (<= 0 unset)")
	fineTuneFrom := flag.String("finetune-from", "", "Model directory to fine-tune from")
	noAugment := flag.Bool("no-augment", false, "Disable training augmentation")
	includeNegatives := flag.Bool("negatives", false, "Keep training regions without points")
	pointClasses := flag.String("point-classes", "", "Comma-separated classes of training points to keep")
	outputRoot := flag.String("output", "models", "Output root for trained models")
	suffix := flag.String("suffix", "spots", "Model name suffix")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	if *envPath == "" {
		fmt.Println("Usage: spotbatch -env <env.yaml> -mode detect|train|help [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	e, err := env.Load(*envPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment")
	}
	if err := e.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid environment")
	}

	cfg := spots.DefaultConfig().
		WithPretrainedModel(*pretrained).
		WithModelDir(*modelDir).
		WithProbabilityThreshold(*threshold).
		WithMinDistance(*minDistance).
		WithSubpixel(*subpixel).
		WithForceCPU(*cpu).
		WithCleanCache(*cleanCache).
		WithClearChildren(*clearAll).
		WithClearChannelChildren(*clearChannels).
		WithThreads(*threads).
		WithEpochs(*epochs).
		WithLearningRate(*learningRate).
		WithFineTuneFrom(*fineTuneFrom).
		WithNoAugment(*noAugment).
		WithIncludeNegatives(*includeNegatives)
	if *channels != "" {
		cfg = cfg.WithChannels(splitList(*channels)...)
	}
	if *pointClasses != "" {
		cfg = cfg.WithPointClasses(splitList(*pointClasses)...)
	}
	if *volumetric {
		cfg = cfg.WithVolumetric(*zStart, *zEnd)
	}
	switch {
	case *noClass:
		cfg = cfg.WithNoClass()
	case *fixedClass != "":
		cfg = cfg.WithFixedClass(*fixedClass)
	}

	run := runner.NewExecRunner(log.With().Str("component", "runner").Logger())
	ctx := context.Background()

	switch *mode {
	case "detect":
		if err := runDetect(ctx, e, cfg, run, *projectPath, *imagePath, *annotationsPath, log); err != nil {
			log.Fatal().Err(err).Msg("Detection failed")
		}
	case "train":
		if err := runTrain(ctx, e, cfg, run, *projectPath, *outputRoot, *suffix, log); err != nil {
			log.Fatal().Err(err).Msg("Training failed")
		}
	case "help":
		for _, cmd := range []string{env.CmdPredict, env.CmdTrain} {
			if err := runner.Help(ctx, run, e.Command(cmd)); err != nil {
				log.Error().Err(err).Str("cmd", cmd).Msg("Help failed")
			}
		}
	default:
		log.Fatal().Str("mode", *mode).Msg("Unknown mode")
	}
}

func runDetect(ctx context.Context, e *env.Environment, cfg spots.Config, run runner.Runner,
	projectPath, imagePath, annotationsPath string, log zerolog.Logger) error {

	if projectPath != "" {
		proj, err := project.Load(projectPath)
		if err != nil {
			return fmt.Errorf("error loading project: %w", err)
		}
		open := training.OpenProjectImage(projectPath, proj)
		for _, ref := range proj.Images {
			src, err := open(ref)
			if err != nil {
				log.Warn().Err(err).Str("image", ref.Name).Msg("Skipping unreadable image")
				continue
			}
			if err := detectImage(ctx, e, cfg, run, src, log); err != nil {
				return err
			}
			if annPath := proj.AnnotationsPath(projectPath, ref); annPath != "" {
				if err := annotate.Save(src.Hierarchy, annPath); err != nil {
					return fmt.Errorf("error saving annotations for %s: %w", ref.Name, err)
				}
			}
		}
		return nil
	}

	if imagePath == "" {
		return fmt.Errorf("detect mode needs -project or -image")
	}
	server, err := pyramid.OpenFile(imagePath)
	if err != nil {
		return err
	}
	h := annotate.NewHierarchy()
	if annotationsPath != "" {
		if h, err = annotate.Load(annotationsPath); err != nil {
			return err
		}
	}
	src := &training.ImageSource{Server: server, Hierarchy: h}
	if err := detectImage(ctx, e, cfg, run, src, log); err != nil {
		return err
	}
	if annotationsPath != "" {
		return annotate.Save(h, annotationsPath)
	}
	return nil
}

func detectImage(ctx context.Context, e *env.Environment, cfg spots.Config, run runner.Runner,
	src *training.ImageSource, log zerolog.Logger) error {

	parents := src.Hierarchy.Regions()
	d := &spots.Detector{
		Env:       e,
		Server:    src.Server,
		Hierarchy: src.Hierarchy,
		Runner:    run,
		Cfg:       cfg,
		Log:       log.With().Str("image", src.Server.Name()).Logger(),
	}
	return d.Detect(ctx, parents)
}

func runTrain(ctx context.Context, e *env.Environment, cfg spots.Config, run runner.Runner,
	projectPath, outputRoot, suffix string, log zerolog.Logger) error {

	if projectPath == "" {
		return fmt.Errorf("train mode needs -project")
	}
	proj, err := project.Load(projectPath)
	if err != nil {
		return fmt.Errorf("error loading project: %w", err)
	}

	tr := &training.Trainer{
		Env:    e,
		Runner: run,
		Builder: &training.DatasetBuilder{
			Project: proj,
			Open:    training.OpenProjectImage(projectPath, proj),
			Cfg:     cfg,
			Log:     log.With().Str("component", "dataset").Logger(),
		},
		Cfg: cfg,
		Log: log.With().Str("component", "trainer").Logger(),
	}

	modelDir, err := tr.Train(ctx, outputRoot, suffix)
	if err != nil {
		return err
	}
	fmt.Printf("Model written to %s\n", modelDir)
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
