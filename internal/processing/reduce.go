package processing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"lsci-map-go/internal/perfusion"
	"lsci-map-go/internal/types"
)

// Mean averages maps elementwise into one reduced map. The running mean keeps
// the average of identical maps bit-for-bit equal to the input.
func Mean(maps []types.ContrastMap) (types.ContrastMap, error) {
	if len(maps) == 0 {
		return types.ContrastMap{}, fmt.Errorf("%w: no contrast maps", types.ErrEmptyReduction)
	}
	rows, cols := maps[0].Dims()
	if rows == 0 || cols == 0 {
		return types.ContrastMap{}, fmt.Errorf("%w: empty contrast map", types.ErrEmptyReduction)
	}

	acc := make([]float64, rows*cols)
	diff := make([]float64, rows*cols)
	for k, m := range maps {
		r, c := m.Dims()
		if r != rows || c != cols {
			return types.ContrastMap{}, fmt.Errorf("%w: map %d is %dx%d, expected %dx%d",
				types.ErrShapeMismatch, k, r, c, rows, cols)
		}
		floats.SubTo(diff, m.Values(), acc)
		floats.AddScaled(acc, 1/float64(k+1), diff)
	}
	return types.ContrastMap{
		WindowSize: maps[0].WindowSize,
		Center:     types.ReducedCenter,
		Data:       mat.NewDense(rows, cols, acc),
	}, nil
}

// Reduce computes the single representative map for one window size.
func (e *Engine) Reduce(seq types.Sequence, windowSize int) (types.ContrastMap, error) {
	maps, err := e.ComputeWindows(seq, windowSize)
	if err != nil {
		return types.ContrastMap{}, err
	}
	return Mean(maps)
}

// CompareWindows reduces seq independently for every size, in the order given.
func (e *Engine) CompareWindows(seq types.Sequence, sizes []int) ([]types.ContrastMap, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: no window sizes", types.ErrEmptyReduction)
	}
	out := make([]types.ContrastMap, 0, len(sizes))
	for _, size := range sizes {
		m, err := e.Reduce(seq, size)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", size, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Series keeps every per-window map together with its perfusion metrics.
func (e *Engine) Series(seq types.Sequence, windowSize int) (types.Series, error) {
	maps, err := e.ComputeWindows(seq, windowSize)
	if err != nil {
		return types.Series{}, err
	}
	series := types.Series{
		WindowSize: windowSize,
		Maps:       maps,
		Metrics:    make([]types.WindowMetrics, len(maps)),
	}
	for i, m := range maps {
		metrics, err := perfusion.SummarizeMap(m)
		if err != nil {
			return types.Series{}, fmt.Errorf("centre %d: %w", m.Center, err)
		}
		series.Metrics[i] = types.WindowMetrics{Center: m.Center, Metrics: metrics}
	}
	return series, nil
}
