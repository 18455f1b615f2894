package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/garbage-classifier/internal/model"
)

var classes = []string{"cardboard", "glass", "metal", "paper", "plastic", "trash"}

func TestBarChart(t *testing.T) {
	pred := model.NewPredictionResponse(classes, []float32{0.1, 0.5, 0.1, 0.1, 0.1, 0.1}, 0.6)

	svg, err := BarChart(pred.Probabilities, pred.Index)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(svg)), "<svg"))
	for _, c := range classes {
		assert.Contains(t, string(svg), c)
	}

	_, err = BarChart(nil, 0)
	assert.Error(t, err)
}

func TestRender_Branches(t *testing.T) {
	tests := []struct {
		name   string
		probs  []float32
		branch string
		other  string
	}{
		{"confident", []float32{0.02, 0.9, 0.02, 0.02, 0.02, 0.02}, `data-branch="confident"`, `data-branch="uncertain"`},
		{"boundary is uncertain", []float32{0.1, 0.6, 0.1, 0.1, 0.05, 0.05}, `data-branch="uncertain"`, `data-branch="confident"`},
		{"uncertain", []float32{0.2, 0.3, 0.1, 0.1, 0.2, 0.1}, `data-branch="uncertain"`, `data-branch="confident"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := model.NewPredictionResponse(classes, tt.probs, 0.6)
			result, err := NewResult(pred, 0.6, "bottle.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Render(&buf, Page{Result: result}))
			html := buf.String()

			assert.Contains(t, html, tt.branch)
			assert.NotContains(t, html, tt.other)
			assert.Contains(t, html, "glass")
			assert.Contains(t, html, "data:image/png;base64,")
			assert.Contains(t, html, "<svg")
			assert.Contains(t, html, `action="/classify"`)
		})
	}
}

func TestRender_ModelError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Page{ModelError: "failed to read metadata: no such file"}))
	html := buf.String()

	assert.Contains(t, html, "Model could not be loaded")
	assert.Contains(t, html, "no such file")
	assert.NotContains(t, html, `action="/classify"`)
}
