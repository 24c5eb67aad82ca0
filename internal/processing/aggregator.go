package processing

import (
	"time"

	"lsci-map-go/internal/perfusion"
	"lsci-map-go/internal/types"
)

// Aggregator keeps the most recent frames of a live acquisition and reports
// the contrast of the newest complete window.
type Aggregator struct {
	windowSize int
	engine     *Engine
	frames     types.Sequence
	frameCount int
}

func NewAggregator(windowSize int, engine *Engine) *Aggregator {
	if windowSize < 1 {
		windowSize = 1
	}
	return &Aggregator{
		windowSize: windowSize,
		engine:     engine,
	}
}

// AddFrame appends f and, once a full window is buffered, returns the
// perfusion metrics of the window ending at f. A frame whose shape differs
// from the buffered ones restarts the window.
func (a *Aggregator) AddFrame(f types.Frame) (types.Metrics, bool) {
	if len(a.frames) > 0 {
		w, h := a.frames.Dims()
		if f.Width != w || f.Height != h {
			a.frames = a.frames[:0]
		}
	}
	a.frames = append(a.frames, f)
	a.frameCount++

	span := 2*Half(a.windowSize) + 1
	if len(a.frames) > span {
		a.frames = append(a.frames[:0], a.frames[len(a.frames)-span:]...)
	}
	if len(a.frames) < span {
		return types.Metrics{}, false
	}

	maps, err := a.engine.ComputeWindows(a.frames, a.windowSize)
	if err != nil || len(maps) != 1 {
		return types.Metrics{}, false
	}
	metrics, err := perfusion.SummarizeMap(maps[0])
	if err != nil {
		return types.Metrics{}, false
	}
	return metrics, true
}

func (a *Aggregator) FrameCount() int {
	return a.frameCount
}

func (a *Aggregator) Reset() {
	a.frameCount = 0
	a.frames = nil
}

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
