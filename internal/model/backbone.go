package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// FeatureExtractor runs the frozen convolutional backbone. Extract takes a
// single NHWC image tensor and returns the backbone's NHWC feature map.
type FeatureExtractor interface {
	Extract(input []float32) ([]float32, error)
	InputShape() []int64
	OutputShape() []int64
	Close()
}

// BackboneOptions locates the ONNX graph and names its tensors.
type BackboneOptions struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputShape []int64
}

// Backbone is an ONNX Runtime session over pre-allocated input and output
// tensors. Runs are serialized since the tensors are shared.
type Backbone struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputShape   []int64
	outputShape  []int64
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewBackbone(opts BackboneOptions) (*Backbone, error) {
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", opts.ModelPath, err)
	}

	return &Backbone{
		session:      session,
		inputShape:   append([]int64(nil), opts.InputShape...),
		outputShape:  append([]int64(nil), opts.OutputShape...),
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (b *Backbone) Extract(input []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dst := b.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := b.outputTensor.GetData()
	features := make([]float32, len(out))
	copy(features, out)
	return features, nil
}

func (b *Backbone) InputShape() []int64  { return b.inputShape }
func (b *Backbone) OutputShape() []int64 { return b.outputShape }

func (b *Backbone) Close() {
	if b.inputTensor != nil {
		b.inputTensor.Destroy()
	}
	if b.outputTensor != nil {
		b.outputTensor.Destroy()
	}
	if b.session != nil {
		b.session.Destroy()
	}
	ort.DestroyEnvironment()
}
