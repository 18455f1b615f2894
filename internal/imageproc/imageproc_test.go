package imageproc

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestPreprocess_ShapeAndRange(t *testing.T) {
	sizes := []image.Point{{300, 200}, {120, 480}, {224, 224}, {17, 9}}
	for _, s := range sizes {
		tensor := Preprocess(randomImage(s.X, s.Y, 1), 224)

		assert.Equal(t, []int64{1, 224, 224, 3}, tensor.Shape)
		require.Len(t, tensor.Data, 224*224*3)
		assert.Equal(t, len(tensor.Data), tensor.Len())
		for _, v := range tensor.Data {
			if v < 0 || v > 1 {
				t.Fatalf("value %v out of [0,1] for %v input", v, s)
			}
		}
	}
}

func TestToTensor_RoundTrip(t *testing.T) {
	img := randomImage(224, 224, 7)
	tensor := ToTensor(img)
	restored := Denormalize(tensor.Data)

	for y := 0; y < 224; y++ {
		for x := 0; x < 224; x++ {
			c := img.NRGBAAt(x, y)
			i := (y*224 + x) * Channels
			assert.InDelta(t, c.R, restored[i], 1)
			assert.InDelta(t, c.G, restored[i+1], 1)
			assert.InDelta(t, c.B, restored[i+2], 1)
		}
	}
}

func TestFit_CentersCrop(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	green := color.NRGBA{G: 255, A: 255}

	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			if x < 10 || x >= 30 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, green)
			}
		}
	}

	fitted := Fit(img, 20)
	assert.Equal(t, image.Rect(0, 0, 20, 20), fitted.Bounds())
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			assert.Equal(t, green, color.NRGBAModel.Convert(fitted.At(x, y)))
		}
	}
}

func TestFit_SubImageOffset(t *testing.T) {
	img := randomImage(64, 64, 3)
	sub := img.SubImage(image.Rect(10, 10, 42, 42))

	tensor := ToTensor(Fit(sub, 32))
	want := ToTensor(sub)
	assert.Equal(t, want.Data, tensor.Data)
}

func TestAugment_Disabled(t *testing.T) {
	tensor := ToTensor(randomImage(32, 32, 5))
	var a Augmentation
	assert.False(t, a.Enabled())

	out := a.Augment(tensor, rand.New(rand.NewSource(1)))
	require.Equal(t, tensor.Shape, out.Shape)
	for i := range tensor.Data {
		assert.InDelta(t, tensor.Data[i], out.Data[i], 1e-6)
	}
}

func TestAugment_FlipOnly(t *testing.T) {
	tensor := ToTensor(randomImage(16, 8, 9))
	a := Augmentation{HorizontalFlip: true}
	rng := rand.New(rand.NewSource(11))

	sawFlip := false
	for i := 0; i < 16; i++ {
		out := a.Augment(tensor, rng)
		mirrored := true
		same := true
		for y := 0; y < 8; y++ {
			for x := 0; x < 16; x++ {
				for c := 0; c < Channels; c++ {
					got := out.Data[(y*16+x)*Channels+c]
					if got != tensor.Data[(y*16+x)*Channels+c] {
						same = false
					}
					if got != tensor.Data[(y*16+(15-x))*Channels+c] {
						mirrored = false
					}
				}
			}
		}
		assert.True(t, same || mirrored)
		sawFlip = sawFlip || (mirrored && !same)
	}
	assert.True(t, sawFlip)
}

func TestAugment_StaysInRange(t *testing.T) {
	tensor := Preprocess(randomImage(100, 80, 2), 64)
	a := Augmentation{Rotation: 20, WidthShift: 0.2, HeightShift: 0.2, HorizontalFlip: true}
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 5; i++ {
		out := a.Augment(tensor, rng)
		assert.Equal(t, tensor.Shape, out.Shape)
		for _, v := range out.Data {
			if v < 0 || v > 1 {
				t.Fatalf("augmented value %v out of range", v)
			}
		}
	}
}
