package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/frames"
	"lsci-map-go/internal/perfusion"
	"lsci-map-go/internal/processing"
	"lsci-map-go/internal/roi"
	"lsci-map-go/internal/types"
)

func TestFlowingHalfHasHigherContrast(t *testing.T) {
	seq := Sequence(32, 16, 15, 42)
	engine := &processing.Engine{Epsilon: 1e-6, Workers: 2}

	left, err := frames.Crop(seq, types.Rect{X: 0, Y: 0, Width: 16, Height: 16})
	require.NoError(t, err)
	right, err := frames.Crop(seq, types.Rect{X: 16, Y: 0, Width: 16, Height: 16})
	require.NoError(t, err)

	staticMap, err := engine.Reduce(left, 5)
	require.NoError(t, err)
	flowMap, err := engine.Reduce(right, 5)
	require.NoError(t, err)

	staticM, err := perfusion.SummarizeMap(staticMap)
	require.NoError(t, err)
	flowM, err := perfusion.SummarizeMap(flowMap)
	require.NoError(t, err)

	assert.Less(t, staticM.Mean, 0.2)
	assert.Greater(t, flowM.Mean, 0.5)
}

func TestSequenceIsDeterministic(t *testing.T) {
	a := Sequence(8, 4, 3, 1)
	b := Sequence(8, 4, 3, 1)
	assert.Equal(t, a[2].Pix, b[2].Pix)
	assert.Equal(t, 2, a[2].Index)
}

func TestCalibrationRoundTripsThroughDetector(t *testing.T) {
	labels := config.DefaultAnalysis().Labels
	want := map[string]types.Rect{
		"blue": {X: 10, Y: 20, Width: 40, Height: 30},
		"red":  {X: 60, Y: 10, Width: 30, Height: 50},
	}
	img := Calibration(100, 80, labels, want)

	got, err := roi.NewDetector(config.DefaultAnalysis()).Detect(img)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStreamStartsWithMetadata(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := Stream(ctx, 4, 2, 200)
	first := <-ch
	assert.Equal(t, "start", first.Type)
	assert.Equal(t, 4, first.Meta["width"])

	second := <-ch
	require.Equal(t, "image", second.Type)
	assert.Equal(t, 0, second.Image.ImageID)
	assert.Len(t, second.Image.Pix, 8)

	cancel()
	for range ch {
	}
}
