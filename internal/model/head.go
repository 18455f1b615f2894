package model

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
)

const headVersion = 1

// Head is the trainable part of the network: global average pooling over
// the backbone feature map followed by a dense softmax layer. Dropout only
// exists during training and is applied by the trainer.
type Head struct {
	Version    int
	Classes    []string
	FeatureDim int
	// Weights is row-major [len(Classes)][FeatureDim].
	Weights []float32
	Bias    []float32
}

// NewHead returns a head with Glorot-uniform weights and zero bias.
func NewHead(classes []string, featureDim int, rng *rand.Rand) *Head {
	n := len(classes)
	limit := math.Sqrt(6 / float64(featureDim+n))

	weights := make([]float32, n*featureDim)
	for i := range weights {
		weights[i] = float32((rng.Float64()*2 - 1) * limit)
	}

	return &Head{
		Version:    headVersion,
		Classes:    append([]string(nil), classes...),
		FeatureDim: featureDim,
		Weights:    weights,
		Bias:       make([]float32, n),
	}
}

// NumClasses returns the number of outputs.
func (h *Head) NumClasses() int { return len(h.Classes) }

// Pool averages an NHWC feature map (batch 1) over its spatial dimensions.
func Pool(featureMap []float32, shape []int64) ([]float32, error) {
	if len(shape) != 4 {
		return nil, fmt.Errorf("feature map must be NHWC, got shape %v", shape)
	}
	spatial := int(shape[1] * shape[2])
	channels := int(shape[3])
	if len(featureMap) != spatial*channels {
		return nil, fmt.Errorf("feature map has %d values, shape %v needs %d", len(featureMap), shape, spatial*channels)
	}

	sums := make([]float64, channels)
	for p := 0; p < spatial; p++ {
		row := featureMap[p*channels : (p+1)*channels]
		for c, v := range row {
			sums[c] += float64(v)
		}
	}

	pooled := make([]float32, channels)
	for c, s := range sums {
		pooled[c] = float32(s / float64(spatial))
	}
	return pooled, nil
}

// Logits computes W·x + b.
func (h *Head) Logits(features []float32) []float32 {
	logits := make([]float32, len(h.Classes))
	for k := range logits {
		row := h.Weights[k*h.FeatureDim : (k+1)*h.FeatureDim]
		sum := float64(h.Bias[k])
		for j, w := range row {
			sum += float64(w) * float64(features[j])
		}
		logits[k] = float32(sum)
	}
	return logits
}

// Forward returns class probabilities for pooled features.
func (h *Head) Forward(features []float32) ([]float32, error) {
	if len(features) != h.FeatureDim {
		return nil, fmt.Errorf("head expects %d features, got %d", h.FeatureDim, len(features))
	}
	return Softmax(h.Logits(features)), nil
}

// Softmax turns logits into a probability distribution.
func Softmax(logits []float32) []float32 {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, float64(l))
	}

	exps := make([]float64, len(logits))
	var total float64
	for i, l := range logits {
		exps[i] = math.Exp(float64(l) - maxLogit)
		total += exps[i]
	}

	probs := make([]float32, len(logits))
	for i, e := range exps {
		probs[i] = float32(e / total)
	}
	return probs
}

// ArgMax returns the index and value of the largest element.
func ArgMax(values []float32) (int, float32) {
	maxIdx := 0
	maxVal := values[0]
	for i, v := range values {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}

// Save writes the head to path, creating the parent directory.
func (h *Head) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create head file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(h); err != nil {
		return fmt.Errorf("failed to encode head: %w", err)
	}
	return f.Close()
}

// LoadHead reads a head written by Save.
func LoadHead(path string) (*Head, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open head: %w", err)
	}
	defer f.Close()

	var h Head
	if err := gob.NewDecoder(f).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode head: %w", err)
	}
	if h.Version != headVersion {
		return nil, fmt.Errorf("unsupported head version %d", h.Version)
	}
	if len(h.Weights) != len(h.Classes)*h.FeatureDim || len(h.Bias) != len(h.Classes) {
		return nil, fmt.Errorf("head is corrupt: %d classes, %d features, %d weights, %d biases",
			len(h.Classes), h.FeatureDim, len(h.Weights), len(h.Bias))
	}
	return &h, nil
}
