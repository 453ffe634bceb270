package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/digit-predict/internal/config"
	"github.com/Brownie44l1/digit-predict/internal/imageloader"
	"github.com/Brownie44l1/digit-predict/internal/model"
)

type flags struct {
	configPath    string
	imagePath     string
	modelPath     string
	metadataPath  string
	sharedLibrary string
	interpolation string
	debug         bool
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "predict [image]",
		Short:        "Classify a handwritten digit image with a pretrained model",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, args)
			if err != nil {
				newLogger(cmd.ErrOrStderr(), f.debug).WithError(err).Error("invalid configuration")
				return err
			}

			log := newLogger(cmd.ErrOrStderr(), cfg.Debug)
			if err := run(cfg, cmd.OutOrStdout(), log); err != nil {
				log.WithError(err).Error("prediction failed")
				return err
			}
			return nil
		},
	}

	cmd.SilenceErrors = true
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file")
	fl.StringVar(&f.imagePath, "image", config.DefaultImagePath, "image to classify")
	fl.StringVar(&f.modelPath, "model", config.DefaultModelPath, "ONNX model file")
	fl.StringVar(&f.metadataPath, "metadata", "", "JSON model metadata (shapes, classes, tensor names)")
	fl.StringVar(&f.sharedLibrary, "onnxruntime-lib", "", "path to the onnxruntime shared library")
	fl.StringVar(&f.interpolation, "interpolation", "nearest", "resize kernel: nearest, bilinear, bicubic or lanczos")
	fl.BoolVar(&f.debug, "debug", false, "verbose logging to stderr")
	return cmd
}

// resolveConfig layers changed flags and the positional image over the
// file and environment config.
func resolveConfig(cmd *cobra.Command, f flags, args []string) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	fl := cmd.Flags()
	if fl.Changed("image") {
		cfg.ImagePath = f.imagePath
	}
	if len(args) == 1 {
		cfg.ImagePath = args[0]
	}
	if fl.Changed("model") {
		cfg.ModelPath = f.modelPath
	}
	if fl.Changed("metadata") {
		cfg.MetadataPath = f.metadataPath
	}
	if fl.Changed("onnxruntime-lib") {
		cfg.SharedLibraryPath = f.sharedLibrary
	}
	if fl.Changed("interpolation") {
		cfg.Interpolation = f.interpolation
	}
	if fl.Changed("debug") {
		cfg.Debug = f.debug
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// run loads the image, then the model, and prints the predicted label to out.
func run(cfg config.Config, out io.Writer, log logrus.FieldLogger) error {
	metadata := model.DefaultMetadata()
	if cfg.MetadataPath != "" {
		var err error
		metadata, err = model.LoadMetadata(cfg.MetadataPath)
		if err != nil {
			return err
		}
	}

	opts, err := cfg.LoaderOptions(metadata.ImageSize)
	if err != nil {
		return err
	}

	log.WithField("path", cfg.ImagePath).Debug("loading image")
	img, err := imageloader.LoadWithOptions(cfg.ImagePath, opts)
	if err != nil {
		return err
	}

	log.WithField("path", cfg.ModelPath).Info("loading model")
	predictor, err := model.NewPredictor(cfg.ModelPath, metadata, model.Options{
		SharedLibraryPath: cfg.SharedLibraryPath,
	})
	if err != nil {
		return err
	}
	defer predictor.Close()

	pred, err := predictor.Predict(img)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"class":      pred.Class,
		"confidence": pred.Confidence,
	}).Debugf("scores: %v", pred.Scores)

	_, err = fmt.Fprintln(out, pred.Label)
	return err
}
