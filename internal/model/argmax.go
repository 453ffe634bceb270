package model

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

var (
	ErrModelNotFound   = errors.New("model not found")
	ErrShapeMismatch   = errors.New("input shape mismatch")
	ErrInvalidMetadata = errors.New("invalid metadata")
	ErrEmptyScores     = errors.New("empty score vector")
)

// ArgMax returns the index of the largest score. Ties resolve to the lowest
// index.
func ArgMax(scores []float32) (int, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyScores
	}

	if err := checkFinite(scores); err != nil {
		return 0, err
	}

	maxIdx := 0
	maxVal := scores[0]
	for i, val := range scores {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, nil
}

// ArgMaxRows reduces a (batch, classes) score tensor along the class axis.
func ArgMaxRows(scores *tensor.Dense) ([]int, error) {
	if scores.Dims() != 2 {
		return nil, fmt.Errorf("expected (batch, classes) scores, got shape %v", scores.Shape())
	}
	if scores.Shape()[1] == 0 {
		return nil, ErrEmptyScores
	}

	data, ok := scores.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 scores, got %v", scores.Dtype())
	}
	if err := checkFinite(data); err != nil {
		return nil, err
	}

	idx, err := scores.Argmax(1)
	if err != nil {
		return nil, fmt.Errorf("argmax failed: %w", err)
	}

	switch v := idx.Data().(type) {
	case []int:
		return v, nil
	case int:
		return []int{v}, nil
	default:
		return nil, fmt.Errorf("unexpected argmax result %T", v)
	}
}

func checkFinite(scores []float32) error {
	for i, val := range scores {
		if math32.IsNaN(val) || math32.IsInf(val, 0) {
			return fmt.Errorf("non-finite score %v at index %d", val, i)
		}
	}
	return nil
}
