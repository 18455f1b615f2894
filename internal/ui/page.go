// Package ui renders the upload page and classification results.
package ui

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"

	"github.com/Brownie44l1/garbage-classifier/internal/model"
)

// Page is everything the single HTML template can show. Zero fields are
// simply not rendered.
type Page struct {
	// ModelError is set when the model failed to load; the upload form is
	// disabled for the rest of the process.
	ModelError  string
	UploadError string
	Result      *Result
	MaxUpload   string
}

// Result is one rendered classification.
type Result struct {
	Prediction *model.PredictionResponse
	Threshold  float32
	Image      template.URL
	Filename   string
	Chart      template.HTML
}

// NewResult echoes the uploaded image back as a data URI and renders the
// probability chart.
func NewResult(pred *model.PredictionResponse, threshold float32, filename, mimeType string, image []byte) (*Result, error) {
	svg, err := BarChart(pred.Probabilities, pred.Index)
	if err != nil {
		return nil, err
	}

	return &Result{
		Prediction: pred,
		Threshold:  threshold,
		Image:      template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)),
		Filename:   filename,
		Chart:      template.HTML(svg),
	}, nil
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"percent": func(v float32) string { return fmt.Sprintf("%.2f%%", v*100) },
}).Parse(pageHTML))

// Render writes page as HTML.
func Render(w io.Writer, page Page) error {
	return pageTemplate.Execute(w, page)
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Garbage classification</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2em auto; padding: 0 1em; }
.banner { padding: .8em 1em; border-radius: 4px; margin: 1em 0; }
.error { background: #fdecea; color: #b71c1c; }
.warning { background: #fff8e1; color: #8d6e00; }
.confident { background: #e8f5e9; color: #1b5e20; }
.uncertain { background: #fff8e1; color: #8d6e00; font-style: italic; }
img.upload { max-width: 100%; border: 1px solid #ccc; }
</style>
</head>
<body>
<h1>Garbage classification</h1>
<p>Upload a photo of a piece of garbage (bottle, jar, carton...) and the model will guess its category.</p>
{{if .ModelError}}
<div class="banner error">Model could not be loaded: {{.ModelError}}</div>
<div class="banner warning">Predictions are disabled. Check the models directory and restart the server.</div>
{{else}}
<form action="/classify" method="post" enctype="multipart/form-data">
<input type="file" name="image" accept=".jpg,.jpeg,.png,image/jpeg,image/png" required>
<button type="submit">Classify</button>
{{if .MaxUpload}}<small>up to {{.MaxUpload}}</small>{{end}}
</form>
{{end}}
{{if .UploadError}}<div class="banner error">{{.UploadError}}</div>{{end}}
{{with .Result}}
<hr>
<figure>
<img class="upload" src="{{.Image}}" alt="uploaded image">
<figcaption>{{.Filename}}</figcaption>
</figure>
{{if .Prediction.Confident}}
<div class="banner confident" data-branch="confident">
Result: <strong>{{.Prediction.Class}}</strong><br>
Confidence: <strong>{{percent .Prediction.Confidence}}</strong>
</div>
{{else}}
<div class="banner uncertain" data-branch="uncertain">
Result might be: <strong>{{.Prediction.Class}}</strong> (not sure)<br>
Confidence: {{percent .Prediction.Confidence}}
</div>
{{end}}
<h3>Prediction details</h3>
{{.Chart}}
<table>
{{range .Prediction.Probabilities}}<tr><td>{{.Class}}</td><td>{{percent .Probability}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`
