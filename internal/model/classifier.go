// Package model wraps the ONNX runtime session behind a small classifier
// type: load pre-fit weights once, run forward passes, nothing else.
package model

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
	ort "github.com/yalue/onnxruntime_go"
)

// Classifier is a frozen image classifier loaded from an ONNX file. It is
// safe for concurrent use: the session's input and output tensors are shared
// buffers, so Predict serializes forward passes internally.
type Classifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	meta         Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewClassifier(modelPath, metadataPath string) (*Classifier, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(metaFile, &meta); err != nil {
		return nil, fmt.Errorf("parse model metadata: %w", err)
	}
	if err := validateMetadata(meta); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &Classifier{
		session:      session,
		meta:         meta,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func validateMetadata(meta Metadata) error {
	if len(meta.InputShape) == 0 || len(meta.OutputShape) == 0 {
		return fmt.Errorf("model metadata missing input or output shape")
	}
	if meta.ImageSize <= 0 {
		return fmt.Errorf("model metadata has invalid image_size %d", meta.ImageSize)
	}
	switch meta.Normalization {
	case NormScale, NormCentered:
	default:
		return fmt.Errorf("model metadata has unknown normalization %q", meta.Normalization)
	}
	return nil
}

// Predict runs a batch-of-1 forward pass and returns a copy of the raw
// probability vector. Label resolution is the caller's concern.
func (c *Classifier) Predict(input []float32) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.inputTensor.GetData()
	if len(input) != len(buf) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), len(buf))
	}
	copy(buf, input)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := c.outputTensor.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

// NumClasses is the model's output dimensionality.
func (c *Classifier) NumClasses() int {
	return int(c.meta.OutputShape[len(c.meta.OutputShape)-1])
}

// ImageSize is the square input resolution the backbone requires.
func (c *Classifier) ImageSize() int { return c.meta.ImageSize }

// Normalization is the pixel normalization the backbone was trained with.
func (c *Classifier) Normalization() Normalization { return c.meta.Normalization }

func (c *Classifier) Close() {
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
