// Package processing computes temporal speckle contrast maps from a cropped
// frame sequence and reduces them.
package processing

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/types"
)

const DefaultEpsilon = 1e-6

type Engine struct {
	Epsilon float64
	Workers int
	Logger  *log.Logger
}

func NewEngine(cfg config.AnalysisConfig, logger *log.Logger) *Engine {
	return &Engine{
		Epsilon: cfg.Epsilon,
		Workers: cfg.Workers,
		Logger:  logger,
	}
}

// Half returns the number of frames taken on each side of a window centre.
func Half(windowSize int) int {
	return windowSize / 2
}

// Centers lists the valid window centres for a sequence of n frames.
func Centers(n, windowSize int) []int {
	half := Half(windowSize)
	var out []int
	for t := half; t <= n-1-half; t++ {
		out = append(out, t)
	}
	return out
}

// ComputeWindows returns one contrast map per valid centre t in
// [half, n-1-half], in centre order. Each map is K = sigma/(mu+eps) over the
// frames [t-half, t+half] using population statistics.
func (e *Engine) ComputeWindows(seq types.Sequence, windowSize int) ([]types.ContrastMap, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidWindow, windowSize)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	centers := Centers(len(seq), windowSize)
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: %d frames, window %d needs at least %d",
			types.ErrInsufficientFrames, len(seq), windowSize, 2*Half(windowSize)+1)
	}

	eps := e.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	workers := e.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(centers) {
		workers = len(centers)
	}

	started := time.Now()
	maps := make([]types.ContrastMap, len(centers))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			samples := make([]float64, 2*Half(windowSize)+1)
			for idx := range jobs {
				maps[idx] = contrastAt(seq, centers[idx], windowSize, eps, samples)
			}
		}()
	}
	for idx := range centers {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if e.Logger != nil {
		w, h := seq.Dims()
		e.Logger.Printf("window %d: %d maps of %dx%d from %d frames in %s",
			windowSize, len(maps), w, h, len(seq), time.Since(started).Round(time.Millisecond))
	}
	return maps, nil
}

func contrastAt(seq types.Sequence, center, windowSize int, eps float64, samples []float64) types.ContrastMap {
	half := Half(windowSize)
	w, h := seq.Dims()
	window := seq[center-half : center+half+1]
	data := make([]float64, w*h)
	for i := range data {
		for k, f := range window {
			samples[k] = float64(f.Pix[i])
		}
		mu, sigma := stat.PopMeanStdDev(samples, nil)
		if math.IsNaN(sigma) {
			sigma = 0
		}
		data[i] = sigma / (mu + eps)
	}
	return types.ContrastMap{
		WindowSize: windowSize,
		Center:     center,
		Data:       mat.NewDense(h, w, data),
	}
}
