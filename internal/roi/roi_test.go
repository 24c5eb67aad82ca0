package roi

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/types"
)

var (
	blue = color.RGBA{B: 255, A: 255}
	red  = color.RGBA{R: 255, A: 255}
)

func calibration(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	return img
}

func fill(img *image.RGBA, r types.Rect, c color.Color) {
	draw.Draw(img, r.Image(), image.NewUniform(c), image.Point{}, draw.Src)
}

func TestDetectExactRectangles(t *testing.T) {
	img := calibration(120, 90)
	fill(img, types.Rect{X: 10, Y: 20, Width: 40, Height: 30}, blue)
	fill(img, types.Rect{X: 70, Y: 5, Width: 25, Height: 60}, red)

	got, err := NewDetector(config.DefaultAnalysis()).Detect(img)
	require.NoError(t, err)

	want := map[string]types.Rect{
		"blue": {X: 10, Y: 20, Width: 40, Height: 30},
		"red":  {X: 70, Y: 5, Width: 25, Height: 60},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Detect mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectBlueOnly(t *testing.T) {
	img := calibration(100, 80)
	fill(img, types.Rect{X: 10, Y: 20, Width: 40, Height: 30}, blue)

	d := &Detector{
		Labels:    []config.Label{{Name: "blue", Channel: 2}},
		Threshold: 200,
		MinArea:   100,
	}
	got, err := d.Detect(img)
	require.NoError(t, err)
	assert.Equal(t, map[string]types.Rect{"blue": {X: 10, Y: 20, Width: 40, Height: 30}}, got)
}

func TestDetectMissingLabel(t *testing.T) {
	img := calibration(100, 80)
	fill(img, types.Rect{X: 10, Y: 20, Width: 40, Height: 30}, blue)

	_, err := NewDetector(config.DefaultAnalysis()).Detect(img)
	require.ErrorIs(t, err, types.ErrRegionNotFound)
	assert.Contains(t, err.Error(), "red")
}

func TestDetectDiscardsSmallContours(t *testing.T) {
	img := calibration(100, 80)
	// 11x11 traces to a 10x10 polygon: area 100, not above the limit.
	fill(img, types.Rect{X: 5, Y: 5, Width: 11, Height: 11}, blue)
	fill(img, types.Rect{X: 50, Y: 50, Width: 20, Height: 20}, red)

	_, err := NewDetector(config.DefaultAnalysis()).Detect(img)
	require.ErrorIs(t, err, types.ErrRegionNotFound)
	assert.Contains(t, err.Error(), "blue")
}

func TestDetectDimMarkerBelowThreshold(t *testing.T) {
	img := calibration(100, 80)
	fill(img, types.Rect{X: 10, Y: 10, Width: 30, Height: 30}, color.RGBA{B: 200, A: 255})

	d := &Detector{Labels: []config.Label{{Name: "blue", Channel: 2}}, Threshold: 200, MinArea: 100}
	_, err := d.Detect(img)
	assert.ErrorIs(t, err, types.ErrRegionNotFound)
}

func TestDetectPrefersLargestContour(t *testing.T) {
	img := calibration(120, 120)
	fill(img, types.Rect{X: 2, Y: 2, Width: 20, Height: 20}, blue)
	fill(img, types.Rect{X: 40, Y: 60, Width: 50, Height: 40}, blue)

	d := &Detector{Labels: []config.Label{{Name: "blue", Channel: 2}}, Threshold: 200, MinArea: 100}
	got, err := d.Detect(img)
	require.NoError(t, err)
	assert.Equal(t, types.Rect{X: 40, Y: 60, Width: 50, Height: 40}, got["blue"])
}

func TestDetectTieBreaksTopLeft(t *testing.T) {
	img := calibration(120, 120)
	fill(img, types.Rect{X: 60, Y: 70, Width: 20, Height: 20}, blue)
	fill(img, types.Rect{X: 70, Y: 10, Width: 20, Height: 20}, blue)
	fill(img, types.Rect{X: 10, Y: 10, Width: 20, Height: 20}, blue)

	d := &Detector{Labels: []config.Label{{Name: "blue", Channel: 2}}, Threshold: 200, MinArea: 100}
	got, err := d.Detect(img)
	require.NoError(t, err)
	assert.Equal(t, types.Rect{X: 10, Y: 10, Width: 20, Height: 20}, got["blue"])
}

func TestDetectRejectsGray(t *testing.T) {
	_, err := NewDetector(config.DefaultAnalysis()).Detect(image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, types.ErrInvalidImage)
}

func TestDetectNRGBAOffsetBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 105, 85))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{A: 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(15, 25, 55, 55), image.NewUniform(color.NRGBA{B: 255, A: 255}), image.Point{}, draw.Src)

	d := &Detector{Labels: []config.Label{{Name: "blue", Channel: 2}}, Threshold: 200, MinArea: 100}
	got, err := d.Detect(img)
	require.NoError(t, err)
	assert.Equal(t, types.Rect{X: 10, Y: 20, Width: 40, Height: 30}, got["blue"])
}

func TestSelect(t *testing.T) {
	contours := []Contour{
		{Area: 50, Bounds: image.Rect(0, 0, 5, 5)},
		{Area: 300, Bounds: image.Rect(9, 9, 20, 20)},
		{Area: 300, Bounds: image.Rect(1, 9, 20, 20)},
	}
	got, ok := Select(contours, 100)
	require.True(t, ok)
	assert.Equal(t, image.Rect(1, 9, 20, 20), got.Bounds)

	_, ok = Select(contours[:1], 100)
	assert.False(t, ok)
}

func TestFindContoursRectangle(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 4; y < 10; y++ {
		for x := 3; x < 12; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	contours, err := findContours(mask)
	require.NoError(t, err)
	require.Len(t, contours, 1)
	assert.Equal(t, image.Rect(3, 4, 12, 10), contours[0].Bounds)
	assert.InDelta(t, 8*5, contours[0].Area, 1e-9)
}

func TestFindContoursSeparateComponents(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 20, 10))
	for y := 1; y < 4; y++ {
		for x := 1; x < 4; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
			mask.SetGray(x+10, y+5, color.Gray{Y: 255})
		}
	}
	contours, err := findContours(mask)
	require.NoError(t, err)
	require.Len(t, contours, 2)
	var bounds []image.Rectangle
	for _, c := range contours {
		bounds = append(bounds, c.Bounds)
	}
	assert.ElementsMatch(t, []image.Rectangle{image.Rect(1, 1, 4, 4), image.Rect(11, 6, 14, 9)}, bounds)
}

func TestPolygonArea(t *testing.T) {
	square := []image.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.Equal(t, 16.0, polygonArea(square))
	assert.Equal(t, 0.0, polygonArea(square[:2]))
}
