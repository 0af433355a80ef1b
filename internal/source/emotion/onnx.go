package emotion

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Tensor names of the emotion-ferplus ONNX model.
const (
	onnxInputName  = "Input3"
	onnxOutputName = "Plus692_Output_0"
)

// ortInit guards one-time onnxruntime environment initialization for the
// whole process.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

var _ Classifier = (*ONNXClassifier)(nil)

// ONNXClassifier scores face crops with the emotion-ferplus model through
// onnxruntime. The session reuses one input and one output tensor, so calls
// are serialized by a mutex.
type ONNXClassifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXClassifier loads the model at modelPath. libraryPath optionally
// points at the onnxruntime shared library; empty uses the platform default.
func NewONNXClassifier(modelPath, libraryPath string) (*ONNXClassifier, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("emotion: initialize onnxruntime: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, inputSize, inputSize))
	if err != nil {
		return nil, fmt.Errorf("emotion: create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(Labels))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("emotion: create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("emotion: load model %q: %w", modelPath, err)
	}

	return &ONNXClassifier{session: session, input: input, output: output}, nil
}

// Classify runs inference on one inputSize×inputSize crop and returns the
// highest-scoring label.
func (c *ONNXClassifier) Classify(face []float32) (string, error) {
	if len(face) != inputSize*inputSize {
		return "", fmt.Errorf("emotion: crop has %d samples, want %d", len(face), inputSize*inputSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return "", errors.New("emotion: classifier is closed")
	}

	copy(c.input.GetData(), face)
	if err := c.session.Run(); err != nil {
		return "", fmt.Errorf("emotion: inference: %w", err)
	}

	scores := c.output.GetData()
	best := 0
	for i := 1; i < len(scores) && i < len(Labels); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return Labels[best], nil
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := errors.Join(c.session.Destroy(), c.input.Destroy(), c.output.Destroy())
	c.session = nil
	return err
}
