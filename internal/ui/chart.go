package ui

import (
	"bytes"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart"
	"github.com/wcharczuk/go-chart/drawing"

	"github.com/Brownie44l1/garbage-classifier/internal/model"
)

const (
	chartWidth  = 720
	chartHeight = 360
)

var (
	barColor       = drawing.ColorFromHex("90a4ae")
	highlightColor = drawing.ColorFromHex("2e7d32")
)

// BarChart renders one bar per class as SVG, with the bar at highlight
// drawn in a distinct color. The y axis is fixed to [0,1].
func BarChart(probs []model.ClassProbability, highlight int) ([]byte, error) {
	if len(probs) == 0 {
		return nil, errors.New("no probabilities to chart")
	}

	bars := make([]chart.Value, len(probs))
	for i, p := range probs {
		fill := barColor
		if i == highlight {
			fill = highlightColor
		}
		bars[i] = chart.Value{
			Label: p.Class,
			Value: float64(p.Probability),
			Style: chart.Style{
				FillColor:   fill,
				StrokeColor: fill,
				StrokeWidth: 1,
			},
		}
	}

	bc := chart.BarChart{
		Title:      "Class probabilities",
		TitleStyle: chart.StyleShow(),
		Width:      chartWidth,
		Height:     chartHeight,
		BarWidth:   chartWidth / (2 * len(bars)),
		BarSpacing: chartWidth / (4 * len(bars)),
		XAxis:      chart.StyleShow(),
		YAxis: chart.YAxis{
			Style: chart.StyleShow(),
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.SVG, &buf); err != nil {
		return nil, errors.Wrap(err, "rendering bar chart")
	}
	return buf.Bytes(), nil
}
