package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
}

// Prediction is the outcome of one forward pass.
type Prediction struct {
	Label      int       `json:"label"`
	Class      string    `json:"class"`
	Confidence float32   `json:"confidence"`
	Scores     []float32 `json:"scores"`
}

// DefaultMetadata describes a 28x28 single channel, ten class digit model.
func DefaultMetadata() Metadata {
	classes := make([]string, 10)
	for i := range classes {
		classes[i] = strconv.Itoa(i)
	}
	return Metadata{
		InputShape:  []int64{1, 28, 28, 1},
		OutputShape: []int64{1, 10},
		Classes:     classes,
		ImageSize:   28,
		InputName:   "input",
		OutputName:  "output",
	}
}

// LoadMetadata reads a JSON metadata file. Fields missing from the file keep
// their DefaultMetadata values.
func LoadMetadata(path string) (Metadata, error) {
	metadata := DefaultMetadata()

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// Validate checks that the shapes, classes and image size agree with each
// other.
func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 {
		return fmt.Errorf("%w: input shape %v must be (batch, height, width, channels)", ErrInvalidMetadata, m.InputShape)
	}
	for _, dim := range m.InputShape {
		if dim <= 0 {
			return fmt.Errorf("%w: input shape %v has a non-positive dimension", ErrInvalidMetadata, m.InputShape)
		}
	}
	if m.InputShape[0] != 1 {
		return fmt.Errorf("%w: batch size must be 1, got %d", ErrInvalidMetadata, m.InputShape[0])
	}
	if m.InputShape[3] != 1 {
		return fmt.Errorf("%w: expected a single grayscale channel, got %d", ErrInvalidMetadata, m.InputShape[3])
	}
	if int64(m.ImageSize) != m.InputShape[1] || int64(m.ImageSize) != m.InputShape[2] {
		return fmt.Errorf("%w: image size %d does not match input shape %v", ErrInvalidMetadata, m.ImageSize, m.InputShape)
	}

	if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 || m.OutputShape[1] <= 0 {
		return fmt.Errorf("%w: output shape %v must be (1, classes)", ErrInvalidMetadata, m.OutputShape)
	}
	if int64(len(m.Classes)) != m.OutputShape[1] {
		return fmt.Errorf("%w: %d classes for %d outputs", ErrInvalidMetadata, len(m.Classes), m.OutputShape[1])
	}

	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("%w: input and output names are required", ErrInvalidMetadata)
	}
	return nil
}

func (m Metadata) inputSize() int {
	size := 1
	for _, dim := range m.InputShape {
		size *= int(dim)
	}
	return size
}
