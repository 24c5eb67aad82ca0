package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"lsci-map-go/internal/types"
)

// WriteSeries writes the per-window metrics of series as a text table.
func WriteSeries(outputDir, runTimestamp, label string, series types.Series) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s_series_w%d.txt", runTimestamp, label, series.WindowSize))
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	w := bufio.NewWriter(f)
	_, _ = fmt.Fprintln(w, "center, mean, total, std")
	for _, wm := range series.Metrics {
		_, _ = fmt.Fprintf(w, "%d, %.9f, %.9f, %.9f\n", wm.Center, wm.Metrics.Mean, wm.Metrics.Total, wm.Metrics.Std)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	return filename, nil
}
