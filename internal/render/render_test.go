package render

import (
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"lsci-map-go/internal/types"
)

func sampleMap(rows, cols int) types.ContrastMap {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i) / float64(len(data))
	}
	return types.ContrastMap{WindowSize: 5, Center: types.ReducedCenter, Data: mat.NewDense(rows, cols, data)}
}

func TestQuantize(t *testing.T) {
	m := types.ContrastMap{Data: mat.NewDense(1, 5, []float64{0, 0.5, 0.999, 2, math.NaN()})}
	img := Quantize(m, 255)
	assert.Equal(t, []uint8{0, 127, 254, 255, 0}, img.Pix)
	assert.Equal(t, 5, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
}

func assertPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
	return img
}

func TestHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figures", "heatmap.png")
	require.NoError(t, Heatmap(path, "blue, window 5", sampleMap(6, 8)))
	img := assertPNG(t, path)

	// 8x6 inch canvas at the default 96 dpi; map and colour bar share it side by side.
	assert.Equal(t, 768, img.Bounds().Dx())
	assert.Equal(t, 576, img.Bounds().Dy())
	assert.True(t, hasInk(img, image.Rect(0, 0, 768-116, 576)), "heatmap panel is blank")
	assert.True(t, hasInk(img, image.Rect(768-115, 0, 768, 576)), "colour bar panel is blank")
}

func hasInk(img image.Image, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if cr != cg || cg != cb {
				return true
			}
		}
	}
	return false
}

func TestHeatmapConstantMap(t *testing.T) {
	m := types.ContrastMap{Data: mat.NewDense(3, 3, nil)}
	path := filepath.Join(t.TempDir(), "flat.png")
	require.NoError(t, Heatmap(path, "flat", m))
	assertPNG(t, path)
}

func TestHeatmapEmpty(t *testing.T) {
	err := Heatmap(filepath.Join(t.TempDir(), "x.png"), "x", types.ContrastMap{})
	assert.ErrorIs(t, err, types.ErrEmptyReduction)
}

func TestComparison(t *testing.T) {
	baseline := types.NewFrame(0, "frame_0.png", 8, 6)
	for i := range baseline.Pix {
		baseline.Pix[i] = uint16(i)
	}
	maps := []types.ContrastMap{sampleMap(6, 8), sampleMap(6, 8)}
	maps[1].WindowSize = 7

	path := filepath.Join(t.TempDir(), "comparison.png")
	require.NoError(t, Comparison(path, baseline, maps))
	assertPNG(t, path)

	assert.ErrorIs(t, Comparison(path, baseline, nil), types.ErrEmptyReduction)
}

func TestMetricBars(t *testing.T) {
	dir := t.TempDir()
	paths, err := MetricBars(dir, "lsci_blue.cbor", types.Metrics{Mean: 0.4, Total: 120, Std: 0.1})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "output_mean_std_lsci_blue.cbor.png", filepath.Base(paths[0]))
	assert.Equal(t, "output_total_lsci_blue.cbor.png", filepath.Base(paths[1]))
	for _, p := range paths {
		assertPNG(t, p)
	}
}
