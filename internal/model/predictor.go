package model

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Options configures the ONNX Runtime environment.
type Options struct {
	// SharedLibraryPath points at libonnxruntime. Empty uses the
	// platform default lookup.
	SharedLibraryPath string
}

// Predictor runs a pretrained classifier exported to ONNX.
type Predictor struct {
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewPredictor(modelPath string, metadata Metadata, opts Options) (*Predictor, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(metadata.InputShape...)
	outputShape := ort.NewShape(metadata.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Predictor{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict classifies a single (1, H, W, 1) image tensor.
func (p *Predictor) Predict(input *tensor.Dense) (*Prediction, error) {
	inputData, err := p.inputData(input)
	if err != nil {
		return nil, err
	}
	copy(p.inputTensor.GetData(), inputData)

	if err := p.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := p.outputTensor.GetData()
	scores := make([]float32, len(outputData))
	copy(scores, outputData)

	return p.decode(scores)
}

// inputData checks input against the model's declared input shape.
func (p *Predictor) inputData(input *tensor.Dense) ([]float32, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: nil input", ErrShapeMismatch)
	}
	if err := checkShape(input.Shape(), p.Metadata.InputShape); err != nil {
		return nil, err
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("%w: expected float32 input, got %v", ErrShapeMismatch, input.Dtype())
	}
	if len(data) != p.Metadata.inputSize() {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrShapeMismatch, p.Metadata.inputSize(), len(data))
	}
	return data, nil
}

// decode turns a raw score vector into a Prediction.
func (p *Predictor) decode(scores []float32) (*Prediction, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyScores
	}
	rows, err := ArgMaxRows(tensor.New(
		tensor.WithShape(1, len(scores)),
		tensor.WithBacking(scores),
	))
	if err != nil {
		return nil, err
	}

	maxIdx := rows[0]
	class := fmt.Sprint(maxIdx)
	if maxIdx < len(p.Metadata.Classes) {
		class = p.Metadata.Classes[maxIdx]
	}

	return &Prediction{
		Label:      maxIdx,
		Class:      class,
		Confidence: scores[maxIdx],
		Scores:     scores,
	}, nil
}

func (p *Predictor) Close() {
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
		p.inputTensor = nil
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
		p.outputTensor = nil
	}
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	ort.DestroyEnvironment()
}

func checkShape(got tensor.Shape, want []int64) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, got, want)
	}
	for i := range want {
		if int64(got[i]) != want[i] {
			return fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, got, want)
		}
	}
	return nil
}
