package imageproc

import (
	"math"
	"math/rand"
)

// Augmentation describes the random affine jitter applied to training images.
type Augmentation struct {
	Rotation       float64 // max degrees, either direction
	WidthShift     float64 // max fraction of width
	HeightShift    float64 // max fraction of height
	HorizontalFlip bool
}

// Enabled reports whether any transform would be applied.
func (a Augmentation) Enabled() bool {
	return a.Rotation > 0 || a.WidthShift > 0 || a.HeightShift > 0 || a.HorizontalFlip
}

// Augment returns a randomly rotated, shifted and possibly mirrored copy of
// t. Pixels that map outside the source take the nearest edge value.
func (a Augmentation) Augment(t *Tensor, rng *rand.Rand) *Tensor {
	height, width := int(t.Shape[1]), int(t.Shape[2])

	theta := uniform(rng, a.Rotation) * math.Pi / 180
	tx := uniform(rng, a.WidthShift) * float64(width)
	ty := uniform(rng, a.HeightShift) * float64(height)
	flip := a.HorizontalFlip && rng.Intn(2) == 1

	cos, sin := math.Cos(theta), math.Sin(theta)
	cx, cy := float64(width-1)/2, float64(height-1)/2

	out := make([]float32, len(t.Data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x)
			if flip {
				dx = float64(width - 1 - x)
			}
			dx -= cx
			dy := float64(y) - cy

			sx := cos*dx - sin*dy + cx + tx
			sy := sin*dx + cos*dy + cy + ty

			bilinear(t.Data, width, height, sx, sy, out[(y*width+x)*Channels:])
		}
	}

	return &Tensor{Data: out, Shape: append([]int64(nil), t.Shape...)}
}

func uniform(rng *rand.Rand, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return (rng.Float64()*2 - 1) * limit
}

func bilinear(src []float32, width, height int, x, y float64, dst []float32) {
	x = clamp(x, 0, float64(width-1))
	y = clamp(y, 0, float64(height-1))

	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= width {
		x1 = width - 1
	}
	if y1 >= height {
		y1 = height - 1
	}
	fx, fy := float32(x-float64(x0)), float32(y-float64(y0))

	p00 := (y0*width + x0) * Channels
	p01 := (y0*width + x1) * Channels
	p10 := (y1*width + x0) * Channels
	p11 := (y1*width + x1) * Channels
	for c := 0; c < Channels; c++ {
		top := src[p00+c]*(1-fx) + src[p01+c]*fx
		bottom := src[p10+c]*(1-fx) + src[p11+c]*fx
		dst[c] = top*(1-fy) + bottom*fy
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
