package perfusion

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lsci-map-go/internal/frames"
	"lsci-map-go/internal/output"
	"lsci-map-go/internal/types"
)

type BatchOptions struct {
	// RenderedOnly skips persisted .cbor maps and summarizes images only.
	RenderedOnly bool
}

type BatchResult struct {
	Metrics map[string]types.Metrics
	Failed  map[string]error
}

// Names returns the summarized sources in sorted order.
func (r BatchResult) Names() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Batch summarizes every supported file in dir. Rendered images (.png, .jpg)
// go through SummarizeImage; .cbor contrast maps go through SummarizeMap. A
// file that cannot be read is logged and recorded in Failed without losing
// the other results; any other error stops the batch.
func Batch(dir string, opts BatchOptions, logger *log.Logger) (BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: list %q: %v", types.ErrIO, dir, err)
	}

	result := BatchResult{
		Metrics: make(map[string]types.Metrics),
		Failed:  make(map[string]error),
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		path := filepath.Join(dir, name)

		var metrics types.Metrics
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png", ".jpg", ".jpeg":
			metrics, err = summarizeImageFile(path)
		case output.MapExt:
			if opts.RenderedOnly {
				continue
			}
			metrics, err = summarizeMapFile(path)
		default:
			continue
		}
		if err != nil {
			if errors.Is(err, types.ErrIO) {
				if logger != nil {
					logger.Printf("skipping %s: %v", name, err)
				}
				result.Failed[name] = err
				continue
			}
			return result, fmt.Errorf("%s: %w", name, err)
		}
		if logger != nil {
			logger.Printf("%s: mean=%.4f total=%.4f std=%.4f", name, metrics.Mean, metrics.Total, metrics.Std)
		}
		result.Metrics[name] = metrics
	}
	return result, nil
}

func summarizeImageFile(path string) (types.Metrics, error) {
	img, err := frames.LoadImage(path)
	if err != nil {
		return types.Metrics{}, err
	}
	return SummarizeImage(img)
}

func summarizeMapFile(path string) (types.Metrics, error) {
	doc, err := output.ReadMap(path)
	if err != nil {
		return types.Metrics{}, err
	}
	return SummarizeMap(doc.Map)
}
