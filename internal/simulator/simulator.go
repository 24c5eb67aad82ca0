// Package simulator stands in for a camera bridge. It produces speckle
// frames whose left half is static and whose right half decorrelates every
// frame, plus calibration images with coloured marker rectangles.
package simulator

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"time"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/types"
)

const (
	meanIntensity = 60.0
	staticJitter  = 0.02
)

// Generator draws successive speckle frames from a seeded source.
type Generator struct {
	width, height int
	rng           *rand.Rand
	static        []float64
	next          int
}

func NewGenerator(width, height int, seed int64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	static := make([]float64, width*height)
	for i := range static {
		static[i] = meanIntensity * rng.ExpFloat64()
	}
	return &Generator{width: width, height: height, rng: rng, static: static}
}

// Next returns the next frame. Fully developed speckle has exponential
// intensity statistics; the left half keeps one pattern with a small jitter,
// the right half draws a fresh pattern every frame.
func (g *Generator) Next() types.RawFrame {
	pix := make([]uint16, g.width*g.height)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			i := y*g.width + x
			var v float64
			if x < g.width/2 {
				v = g.static[i] * (1 + staticJitter*g.rng.NormFloat64())
			} else {
				v = meanIntensity * g.rng.ExpFloat64()
			}
			switch {
			case v < 0:
				v = 0
			case v > 255:
				v = 255
			}
			pix[i] = uint16(v)
		}
	}
	frame := types.RawFrame{
		ImageID:   g.next,
		StartTime: float64(time.Now().UnixNano()) / 1e9,
		Width:     g.width,
		Height:    g.height,
		Depth:     8,
		Pix:       pix,
	}
	g.next++
	return frame
}

// Sequence returns n frames as an in-memory sequence.
func Sequence(width, height, n int, seed int64) types.Sequence {
	g := NewGenerator(width, height, seed)
	seq := make(types.Sequence, n)
	for i := range seq {
		raw := g.Next()
		seq[i] = types.Frame{Index: raw.ImageID, Width: raw.Width, Height: raw.Height, Pix: raw.Pix}
	}
	return seq
}

// Stream emits a start message followed by one image message per tick.
func Stream(ctx context.Context, width, height int, acqRate float64) <-chan types.RawMessage {
	out := make(chan types.RawMessage)
	go func() {
		defer close(out)

		if acqRate <= 0 {
			acqRate = 1
		}
		start := types.RawMessage{
			Type: "start",
			Meta: map[string]any{
				"source":      "simulator",
				"width":       width,
				"height":      height,
				"frame_rate":  acqRate,
				"exposure_us": 1e6 / acqRate,
			},
		}
		select {
		case <-ctx.Done():
			return
		case out <- start:
		}

		g := NewGenerator(width, height, time.Now().UnixNano())
		ticker := time.NewTicker(time.Duration(float64(time.Second) / acqRate))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case <-ctx.Done():
					return
				case out <- types.RawMessage{Type: "image", Image: g.Next()}:
				}
			}
		}
	}()
	return out
}

// Calibration renders each label's rectangle as a saturated fill of its
// channel on a black background.
func Calibration(width, height int, labels []config.Label, rects map[string]types.Rect) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	for _, l := range labels {
		r, ok := rects[l.Name]
		if !ok {
			continue
		}
		c := color.RGBA{A: 255}
		switch l.Channel {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		draw.Draw(img, r.Image(), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}
