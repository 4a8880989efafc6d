package fingerprint

import (
	"image"
	"math"
)

// resampleRGB scales img to cols x rows with nearest-neighbor sampling and
// writes normalized float32 RGB triples into dst, which must hold
// rows*cols*3 values. Each channel is scaled to [0,1] and then shifted by
// the given per-channel mean and standard deviation.
func resampleRGB(img image.Image, cols, rows int, mean, std [3]float32, dst []float32) {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()

	i := 0
	for y := 0; y < rows; y++ {
		sy := nearestIndex(y, rows, h) + b.Min.Y
		for x := 0; x < cols; x++ {
			sx := nearestIndex(x, cols, w) + b.Min.X
			r, g, bl, _ := img.At(sx, sy).RGBA()
			dst[i] = (float32(r>>8)/255 - mean[0]) / std[0]
			dst[i+1] = (float32(g>>8)/255 - mean[1]) / std[1]
			dst[i+2] = (float32(bl>>8)/255 - mean[2]) / std[2]
			i += 3
		}
	}
}

func nearestIndex(i, n, size int) int {
	j := int(math.Round(float64(i*size) / float64(n)))
	if j >= size {
		j = size - 1
	}
	return j
}
