// Package modeltest provides a feature extractor that needs no ONNX runtime.
package modeltest

import (
	"fmt"

	"github.com/Brownie44l1/garbage-classifier/internal/model"
)

var _ model.FeatureExtractor = (*Extractor)(nil)

// Extractor fills every cell of a 2x2 feature map with the per-channel mean
// of the input image, so its features are the image's average color.
type Extractor struct {
	Size   int
	Calls  int
	Closed bool
	Err    error
}

func NewExtractor(size int) *Extractor {
	return &Extractor{Size: size}
}

func (e *Extractor) Extract(input []float32) ([]float32, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	if len(input) != e.Size*e.Size*3 {
		return nil, fmt.Errorf("expected %d input values, got %d", e.Size*e.Size*3, len(input))
	}

	var sums [3]float64
	for i, v := range input {
		sums[i%3] += float64(v)
	}
	pixels := float64(e.Size * e.Size)

	out := make([]float32, 0, 4*3)
	for cell := 0; cell < 4; cell++ {
		for c := 0; c < 3; c++ {
			out = append(out, float32(sums[c]/pixels))
		}
	}
	return out, nil
}

func (e *Extractor) InputShape() []int64 {
	return []int64{1, int64(e.Size), int64(e.Size), 3}
}

func (e *Extractor) OutputShape() []int64 {
	return []int64{1, 2, 2, 3}
}

func (e *Extractor) Close() { e.Closed = true }
