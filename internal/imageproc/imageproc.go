// Package imageproc turns decoded images into the normalized NHWC tensors
// the feature extractor consumes. The trainer and the server both go through
// Preprocess so the two can never disagree on resize or scaling.
package imageproc

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

// Channels is the number of color channels fed to the network (RGB).
const Channels = 3

// Scale maps 8-bit intensities into [0,1].
const Scale = 255.0

// Tensor is a dense float32 array in NHWC order.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Len returns the number of elements the shape describes.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// Fit center-crops img to a square and resizes it to size x size with
// Lanczos3, the same way ImageOps.fit would.
func Fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2

	cropped := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(x0, y0), draw.Src)

	if side == size {
		return cropped
	}
	return resize.Resize(uint(size), uint(size), cropped, resize.Lanczos3)
}

// ToTensor converts img into a (1, H, W, 3) tensor with values divided by 255.
// Alpha is dropped.
func ToTensor(img image.Image) *Tensor {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	data := make([]float32, width*height*Channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*width + x) * Channels
			data[i] = float32(c.R) / Scale
			data[i+1] = float32(c.G) / Scale
			data[i+2] = float32(c.B) / Scale
		}
	}

	return &Tensor{
		Data:  data,
		Shape: []int64{1, int64(height), int64(width), Channels},
	}
}

// Preprocess is Fit followed by ToTensor.
func Preprocess(img image.Image, size int) *Tensor {
	return ToTensor(Fit(img, size))
}

// Denormalize scales tensor values back to 8-bit intensities.
func Denormalize(data []float32) []uint8 {
	out := make([]uint8, len(data))
	for i, v := range data {
		scaled := math.Round(float64(v) * Scale)
		if scaled < 0 {
			scaled = 0
		} else if scaled > 255 {
			scaled = 255
		}
		out[i] = uint8(scaled)
	}
	return out
}
