// Package perfusion reduces contrast maps, or rendered images of them, to
// mean, total and standard deviation.
package perfusion

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lsci-map-go/internal/frames"
	"lsci-map-go/internal/types"
)

// Summarize returns the mean, sum and population standard deviation of values.
func Summarize(values []float64) (types.Metrics, error) {
	if len(values) == 0 {
		return types.Metrics{}, fmt.Errorf("%w: no values to summarize", types.ErrEmptyReduction)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return types.Metrics{
		Mean:  mean,
		Total: floats.Sum(values),
		Std:   std,
	}, nil
}

// SummarizeMap works on the floating-point contrast values directly.
func SummarizeMap(m types.ContrastMap) (types.Metrics, error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return types.Metrics{}, fmt.Errorf("%w: empty contrast map", types.ErrEmptyReduction)
	}
	return Summarize(m.Values()[:rows*cols])
}

// SummarizeImage works on a rendered map read back as 8-bit gray, so its
// metrics carry whatever quantization the rendering applied.
func SummarizeImage(img image.Image) (types.Metrics, error) {
	if img == nil || img.Bounds().Empty() {
		return types.Metrics{}, fmt.Errorf("%w: empty image", types.ErrInvalidImage)
	}
	gray := frames.ToGray(img)
	b := gray.Bounds()
	values := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			values = append(values, float64(gray.GrayAt(x, y).Y))
		}
	}
	return Summarize(values)
}
