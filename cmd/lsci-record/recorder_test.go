package main

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/frames"
	"lsci-map-go/internal/processing"
	"lsci-map-go/internal/simulator"
	"lsci-map-go/internal/types"
)

func newTestRecorder(t *testing.T, maxFrames int, ui chan any) (*recorder, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "frames")
	cfg := config.DefaultAnalysis()
	cfg.Workers = 1
	agg := processing.NewAggregator(3, processing.NewEngine(cfg, nil))
	return newRecorder(dir, maxFrames, 2, agg, ui, log.New(io.Discard, "", 0)), dir
}

func feed(msgs ...types.RawMessage) <-chan types.RawMessage {
	ch := make(chan types.RawMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return ch
}

func TestRecorderWritesFramesUntilEnd(t *testing.T) {
	ui := make(chan any, 4)
	rec, dir := newTestRecorder(t, 0, ui)
	g := simulator.NewGenerator(16, 8, 1)

	msgs := []types.RawMessage{{Type: "start", Meta: map[string]any{"number_of_images": 4}}}
	for i := 0; i < 4; i++ {
		msgs = append(msgs, types.RawMessage{Type: "image", Image: g.Next()})
	}
	msgs = append(msgs, types.RawMessage{Type: "end"})

	got, err := rec.run(context.Background(), feed(msgs...))
	require.NoError(t, err)
	assert.Equal(t, stopEnd, got.Reason)
	assert.Equal(t, 4, got.FramesWritten)
	assert.Equal(t, 4, got.FramesExpected)
	assert.False(t, got.Partial)

	seq, err := frames.Load(dir)
	require.NoError(t, err)
	require.Len(t, seq, 4)
	w, h := seq.Dims()
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)
	assert.Equal(t, "frame_000003.png", filepath.Base(seq[3].Source))

	meta, err := filepath.Glob(filepath.Join(dir, "*_metadata.json"))
	require.NoError(t, err)
	assert.Len(t, meta, 2)

	require.Len(t, ui, 1)
	snap := (<-ui).(types.ProgressSnapshot)
	assert.Equal(t, "progress", snap.Type)
	assert.Equal(t, 4, snap.FramesWritten)
	assert.Equal(t, 3, snap.LastImageID)
	assert.Greater(t, snap.MeanContrast, 0.0)
}

func TestRecorderStopsAtMaxFrames(t *testing.T) {
	rec, dir := newTestRecorder(t, 2, nil)
	g := simulator.NewGenerator(4, 4, 2)

	got, err := rec.run(context.Background(), feed(
		types.RawMessage{Type: "image", Image: g.Next()},
		types.RawMessage{Type: "image", Image: g.Next()},
		types.RawMessage{Type: "image", Image: g.Next()},
	))
	require.NoError(t, err)
	assert.Equal(t, stopMaxFrames, got.Reason)
	assert.Equal(t, 2, got.FramesWritten)
	assert.False(t, got.Partial)

	entries, err := frames.List(dir, frames.DefaultExtensions)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecorderReportsPartialOnStreamLoss(t *testing.T) {
	rec, _ := newTestRecorder(t, 5, nil)
	g := simulator.NewGenerator(4, 4, 3)

	ch := make(chan types.RawMessage, 3)
	ch <- types.RawMessage{Type: "image", Image: g.Next()}
	ch <- types.RawMessage{Type: "image", Image: types.RawFrame{ImageID: 9, Width: 4, Height: 4, Pix: []uint16{1}}}
	ch <- types.RawMessage{Type: "image", Image: g.Next()}
	close(ch)

	got, err := rec.run(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, stopStream, got.Reason)
	assert.True(t, got.Partial)
	assert.Equal(t, 2, got.FramesWritten)
	assert.Equal(t, 5, got.FramesExpected)
	assert.EqualValues(t, 1, rec.metrics.framesDropped.Load())
}

func TestRecorderCancelledBySimulatorDeadline(t *testing.T) {
	rec, _ := newTestRecorder(t, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	got, err := rec.run(ctx, simulator.Stream(ctx, 8, 8, 50))
	require.NoError(t, err)
	assert.Equal(t, stopCancelled, got.Reason)
	assert.Positive(t, got.FramesWritten)

	status := rec.statusSnapshot()
	assert.Equal(t, "receiving", status["stream"])
	assert.NotNil(t, status["run_start"])
}
