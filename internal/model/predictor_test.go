package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func imageTensor(h, w int) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1, h, w, 1),
		tensor.WithBacking(make([]float32, h*w)),
	)
}

func TestNewPredictorMissingModel(t *testing.T) {
	p, err := NewPredictor(filepath.Join(t.TempDir(), "final_model.onnx"), DefaultMetadata(), Options{})
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, ErrModelNotFound), "got %v", err)
}

func TestNewPredictorInvalidMetadata(t *testing.T) {
	meta := DefaultMetadata()
	meta.Classes = meta.Classes[:9]

	_, err := NewPredictor("final_model.onnx", meta, Options{})
	assert.True(t, errors.Is(err, ErrInvalidMetadata), "got %v", err)
}

func TestInputDataShapeCheck(t *testing.T) {
	p := &Predictor{Metadata: DefaultMetadata()}

	data, err := p.inputData(imageTensor(28, 28))
	require.NoError(t, err)
	assert.Len(t, data, 28*28)

	tests := []struct {
		name  string
		input *tensor.Dense
	}{
		{"nil", nil},
		{"wrong size", imageTensor(32, 32)},
		{"missing batch", tensor.New(tensor.WithShape(28, 28, 1), tensor.WithBacking(make([]float32, 28*28)))},
		{"float64", tensor.New(tensor.WithShape(1, 28, 28, 1), tensor.WithBacking(make([]float64, 28*28)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.inputData(tt.input)
			assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
		})
	}
}

func TestDecode(t *testing.T) {
	p := &Predictor{Metadata: DefaultMetadata()}

	pred, err := p.decode([]float32{0.1, 0.9, 0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, pred.Label)
	assert.Equal(t, "1", pred.Class)
	assert.Equal(t, float32(0.9), pred.Confidence)
	assert.Len(t, pred.Scores, 10)

	_, err = p.decode(nil)
	assert.True(t, errors.Is(err, ErrEmptyScores))
}

// TestPredictEndToEnd needs a real model and ONNX Runtime:
//
//	DIGIT_TEST_MODEL=final_model.onnx ONNXRUNTIME_SHARED_LIBRARY_PATH=... go test ./internal/model
func TestPredictEndToEnd(t *testing.T) {
	modelPath := os.Getenv("DIGIT_TEST_MODEL")
	if modelPath == "" {
		t.Skip("DIGIT_TEST_MODEL not set")
	}

	meta := DefaultMetadata()
	if metaPath := os.Getenv("DIGIT_TEST_METADATA"); metaPath != "" {
		var err error
		meta, err = LoadMetadata(metaPath)
		require.NoError(t, err)
	}

	p, err := NewPredictor(modelPath, meta, Options{
		SharedLibraryPath: os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
	})
	require.NoError(t, err)
	defer p.Close()

	pred, err := p.Predict(imageTensor(meta.ImageSize, meta.ImageSize))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pred.Label, 0)
	assert.Less(t, pred.Label, len(meta.Classes))
	assert.Len(t, pred.Scores, len(meta.Classes))

	_, err = p.Predict(imageTensor(meta.ImageSize+1, meta.ImageSize))
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}
