// Package config resolves where the image and model live and how the image
// is resampled. Values come from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/digit-predict/internal/imageloader"
)

const (
	DefaultImagePath = "testSet/img_8.jpg"
	DefaultModelPath = "final_model.onnx"
)

var ErrInvalidConfig = errors.New("invalid config")

// Environment variable names.
const (
	EnvImage         = "DIGIT_IMAGE"
	EnvModel         = "DIGIT_MODEL"
	EnvMetadata      = "DIGIT_METADATA"
	EnvInterpolation = "DIGIT_INTERPOLATION"
	EnvSharedLibrary = "ONNXRUNTIME_SHARED_LIBRARY_PATH"
)

type Config struct {
	ImagePath         string `yaml:"image"`
	ModelPath         string `yaml:"model"`
	MetadataPath      string `yaml:"metadata"`
	SharedLibraryPath string `yaml:"onnxruntime_lib"`
	Interpolation     string `yaml:"interpolation"`
	Debug             bool   `yaml:"debug"`
}

func Default() Config {
	return Config{
		ImagePath:     DefaultImagePath,
		ModelPath:     DefaultModelPath,
		Interpolation: "nearest",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(ErrInvalidConfig, "%s: %v", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.ImagePath, EnvImage)
	set(&c.ModelPath, EnvModel)
	set(&c.MetadataPath, EnvMetadata)
	set(&c.Interpolation, EnvInterpolation)
	set(&c.SharedLibraryPath, EnvSharedLibrary)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ImagePath) == "" {
		return errors.Wrap(ErrInvalidConfig, "image path is required")
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		return errors.Wrap(ErrInvalidConfig, "model path is required")
	}
	if _, err := imageloader.ParseInterpolation(c.Interpolation); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	return nil
}

// LoaderOptions returns the image loader options for size.
func (c Config) LoaderOptions(size int) (imageloader.Options, error) {
	interp, err := imageloader.ParseInterpolation(c.Interpolation)
	if err != nil {
		return imageloader.Options{}, err
	}
	return imageloader.Options{
		Width:         uint(size),
		Height:        uint(size),
		Interpolation: interp,
	}, nil
}
