package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvImage, EnvModel, EnvMetadata, EnvInterpolation, EnvSharedLibrary} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultImagePath, cfg.ImagePath)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, "nearest", cfg.Interpolation)
	assert.False(t, cfg.Debug)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "predict.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
image: digits/seven.png
model: models/mnist.onnx
metadata: models/mnist.json
interpolation: bilinear
debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "digits/seven.png", cfg.ImagePath)
	assert.Equal(t, "models/mnist.onnx", cfg.ModelPath)
	assert.Equal(t, "models/mnist.json", cfg.MetadataPath)
	assert.Equal(t, "bilinear", cfg.Interpolation)
	assert.True(t, cfg.Debug)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "predict.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: from-file.onnx\n"), 0o644))
	t.Setenv(EnvModel, "from-env.onnx")
	t.Setenv(EnvSharedLibrary, "/opt/onnxruntime/lib/libonnxruntime.so")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.onnx", cfg.ModelPath)
	assert.Equal(t, "/opt/onnxruntime/lib/libonnxruntime.so", cfg.SharedLibraryPath)
	assert.Equal(t, DefaultImagePath, cfg.ImagePath)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("image: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	t.Setenv(EnvInterpolation, "box")
	_, err = Load("")
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ImagePath = " "
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))

	cfg = Default()
	cfg.ModelPath = ""
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))
}

func TestLoaderOptions(t *testing.T) {
	cfg := Default()
	cfg.Interpolation = "lanczos"

	opts, err := cfg.LoaderOptions(28)
	require.NoError(t, err)
	assert.Equal(t, uint(28), opts.Width)
	assert.Equal(t, uint(28), opts.Height)
	assert.Equal(t, resize.Lanczos3, opts.Interpolation)
}
