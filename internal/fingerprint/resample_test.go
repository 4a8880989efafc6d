package fingerprint

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResampleRGBUniform(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 127, A: 255})
		}
	}

	mean := [3]float32{0.485, 0.456, 0.406}
	std := [3]float32{0.229, 0.224, 0.225}
	dst := make([]float32, 8*8*3)
	resampleRGB(img, 8, 8, mean, std, dst)

	wantR := (float32(1.0) - mean[0]) / std[0]
	wantG := (float32(0.0) - mean[1]) / std[1]
	wantB := (float32(127)/255 - mean[2]) / std[2]
	for i := 0; i < len(dst); i += 3 {
		assert.InDelta(t, wantR, dst[i], 1e-4)
		assert.InDelta(t, wantG, dst[i+1], 1e-4)
		assert.InDelta(t, wantB, dst[i+2], 1e-4)
	}
}

func TestResampleRGBDeterministic(t *testing.T) {
	img := gradientImage(3, 64, 48)

	a := make([]float32, 16*16*3)
	b := make([]float32, 16*16*3)
	mean := [3]float32{}
	std := [3]float32{1, 1, 1}
	resampleRGB(img, 16, 16, mean, std, a)
	resampleRGB(img, 16, 16, mean, std, b)

	assert.Equal(t, a, b)
}

func TestResampleRGBOffsetBounds(t *testing.T) {
	// Images whose bounds do not start at the origin must still sample
	// inside the image.
	img := image.NewRGBA(image.Rect(10, 20, 42, 52))
	for y := 20; y < 52; y++ {
		for x := 10; x < 42; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}

	dst := make([]float32, 4*4*3)
	resampleRGB(img, 4, 4, [3]float32{}, [3]float32{1, 1, 1}, dst)

	for i := 0; i < len(dst); i += 3 {
		assert.InDelta(t, float32(10)/255, dst[i], 1e-4)
	}
}
