package model

import (
	"fmt"
	"slices"
)

// Classifier joins the frozen backbone with a trained head.
type Classifier struct {
	backbone  FeatureExtractor
	head      *Head
	Metadata  Metadata
	threshold float32
}

// NewClassifier checks that the backbone, head and manifest agree on shape
// and class order.
func NewClassifier(backbone FeatureExtractor, head *Head, metadata Metadata, threshold float32) (*Classifier, error) {
	if !slices.Equal(head.Classes, metadata.Classes) {
		return nil, fmt.Errorf("head classes %v do not match metadata classes %v", head.Classes, metadata.Classes)
	}

	out := backbone.OutputShape()
	if len(out) != 4 || int(out[3]) != head.FeatureDim {
		return nil, fmt.Errorf("backbone output %v does not feed a head of %d features", out, head.FeatureDim)
	}
	if len(metadata.InputShape) > 0 && !slices.Equal(metadata.InputShape, backbone.InputShape()) {
		return nil, fmt.Errorf("model was trained on input %v, backbone expects %v", metadata.InputShape, backbone.InputShape())
	}

	return &Classifier{
		backbone:  backbone,
		head:      head,
		Metadata:  metadata,
		threshold: threshold,
	}, nil
}

// InputSize is the number of values Predict expects.
func (c *Classifier) InputSize() int {
	size := 1
	for _, dim := range c.backbone.InputShape() {
		size *= int(dim)
	}
	return size
}

// ImageSize is the side length images are fitted to before Predict.
func (c *Classifier) ImageSize() int {
	return int(c.backbone.InputShape()[1])
}

// Threshold is the confidence above which a prediction counts as confident.
func (c *Classifier) Threshold() float32 {
	return c.threshold
}

// Features runs the backbone and pools its output.
func (c *Classifier) Features(inputData []float32) ([]float32, error) {
	featureMap, err := c.backbone.Extract(inputData)
	if err != nil {
		return nil, err
	}
	return Pool(featureMap, c.backbone.OutputShape())
}

func (c *Classifier) Predict(inputData []float32) (*PredictionResponse, error) {
	if len(inputData) != c.InputSize() {
		return nil, fmt.Errorf("expected %d values, got %d", c.InputSize(), len(inputData))
	}

	features, err := c.Features(inputData)
	if err != nil {
		return nil, err
	}

	outputData, err := c.head.Forward(features)
	if err != nil {
		return nil, err
	}

	return NewPredictionResponse(c.Metadata.Classes, outputData, c.threshold), nil
}

// NewPredictionResponse derives the arg-max class and presentation flag from
// a probability vector.
func NewPredictionResponse(classes []string, probs []float32, threshold float32) *PredictionResponse {
	maxIdx, maxVal := ArgMax(probs)

	predictions := make(map[string]float32, len(classes))
	probabilities := make([]ClassProbability, len(classes))
	for i, class := range classes {
		predictions[class] = probs[i]
		probabilities[i] = ClassProbability{Class: class, Probability: probs[i]}
	}

	return &PredictionResponse{
		Class:         classes[maxIdx],
		Index:         maxIdx,
		Confidence:    maxVal,
		Confident:     IsConfident(maxVal, threshold),
		Predictions:   predictions,
		Probabilities: probabilities,
	}
}

// IsConfident reports whether confidence is strictly above threshold.
func IsConfident(confidence, threshold float32) bool {
	return confidence > threshold
}

func (c *Classifier) Close() {
	if c.backbone != nil {
		c.backbone.Close()
	}
}
