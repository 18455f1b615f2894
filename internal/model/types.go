package model

import "time"

// Metadata is the sidecar manifest written next to the trained head. It is
// the only source of class order for the server.
type Metadata struct {
	InputShape   []int64        `json:"input_shape"`
	OutputShape  []int64        `json:"output_shape"`
	Classes      []string       `json:"classes"`
	ClassIndices map[string]int `json:"class_indices"`
	ImageSize    int            `json:"image_size"`
	Epochs       int            `json:"epochs,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float32 `json:"probability"`
}

type PredictionResponse struct {
	Class         string             `json:"class"`
	Index         int                `json:"index"`
	Confidence    float32            `json:"confidence"`
	Confident     bool               `json:"confident"`
	Predictions   map[string]float32 `json:"predictions"`
	Probabilities []ClassProbability `json:"probabilities"`
}
