package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/frames"
	"lsci-map-go/internal/output"
	"lsci-map-go/internal/perfusion"
	"lsci-map-go/internal/processing"
	"lsci-map-go/internal/render"
	"lsci-map-go/internal/roi"
	"lsci-map-go/internal/types"
)

type options struct {
	configPath  string
	calibration string
	framesDir   string
	outputDir   string
	window      int
	windows     string
	labels      string
	workers     int
	series      bool
	render      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "JSON analysis config (defaults when empty or missing)")
	flag.StringVar(&opts.calibration, "calibration", "", "Calibration image with coloured ROI markers")
	flag.StringVar(&opts.framesDir, "frames", "", "Directory of numbered speckle frames")
	flag.StringVar(&opts.outputDir, "output-dir", "output", "Directory for maps, figures and records")
	flag.IntVar(&opts.window, "window", 0, "Temporal window size (overrides config)")
	flag.StringVar(&opts.windows, "windows", "", "Comma separated window sizes to compare (overrides config)")
	flag.StringVar(&opts.labels, "labels", "", "ROI labels as name:channel pairs, e.g. blue:2,red:0")
	flag.IntVar(&opts.workers, "workers", 0, "Contrast workers (overrides config)")
	flag.BoolVar(&opts.series, "series", false, "Also write the per-window metric series")
	flag.BoolVar(&opts.render, "render", true, "Render heatmaps and the window comparison")
	flag.Parse()

	logger := log.New(os.Stderr, "[lsci-map] ", log.LstdFlags)
	if opts.calibration == "" || opts.framesDir == "" {
		logger.Fatal("-calibration and -frames are required")
	}
	if err := run(opts, logger); err != nil {
		logger.Fatalf("analysis failed: %v", err)
	}
}

func loadConfig(opts options, logger *log.Logger) (config.AnalysisConfig, error) {
	cfg, err := config.Load(opts.configPath, logger)
	if err != nil {
		return cfg, err
	}
	if opts.window > 0 {
		cfg.WindowSize = opts.window
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	sizes, err := config.ParseWindowSizes(opts.windows)
	if err != nil {
		return cfg, err
	}
	if len(sizes) > 0 {
		cfg.WindowSizes = sizes
	}
	labels, err := config.ParseLabels(opts.labels)
	if err != nil {
		return cfg, err
	}
	if len(labels) > 0 {
		cfg.Labels = labels
	}
	return cfg, cfg.Validate()
}

func run(opts options, logger *log.Logger) error {
	started := time.Now()
	cfg, err := loadConfig(opts, logger)
	if err != nil {
		return err
	}

	calibration, err := frames.LoadImage(opts.calibration)
	if err != nil {
		return err
	}
	rois, err := roi.NewDetector(cfg).Detect(calibration)
	if err != nil {
		return err
	}
	for _, l := range cfg.Labels {
		logger.Printf("roi %s: %s", l.Name, rois[l.Name])
	}

	seq, err := frames.Load(opts.framesDir)
	if err != nil {
		return err
	}
	w, h := seq.Dims()
	logger.Printf("loaded %d frames of %dx%d from %s", len(seq), w, h, opts.framesDir)

	engine := processing.NewEngine(cfg, logger)
	ts := processing.Timestamp()
	figures := filepath.Join(opts.outputDir, "figures")
	metrics := make(map[string]types.Metrics, len(cfg.Labels))
	outputs := map[string][]string{}

	for _, l := range cfg.Labels {
		cropped, err := frames.Crop(seq, rois[l.Name])
		if err != nil {
			return fmt.Errorf("%s: %w", l.Name, err)
		}
		m, err := engine.Reduce(cropped, cfg.WindowSize)
		if err != nil {
			return fmt.Errorf("%s: %w", l.Name, err)
		}

		name := fmt.Sprintf("%s_lsci_w%d", l.Name, cfg.WindowSize)
		paths, err := writeReduced(opts.outputDir, name, l.Name, m, cfg.QuantizeScale, metrics, logger)
		if err != nil {
			return err
		}
		outputs[l.Name] = append(outputs[l.Name], paths...)

		var compared []types.ContrastMap
		if len(cfg.WindowSizes) > 0 {
			compared, err = engine.CompareWindows(cropped, cfg.WindowSizes)
			if err != nil {
				return fmt.Errorf("%s: %w", l.Name, err)
			}
			for _, cm := range compared {
				if cm.WindowSize == cfg.WindowSize {
					continue
				}
				paths, err := writeReduced(opts.outputDir, fmt.Sprintf("%s_lsci_w%d", l.Name, cm.WindowSize),
					l.Name, cm, cfg.QuantizeScale, metrics, logger)
				if err != nil {
					return err
				}
				outputs[l.Name] = append(outputs[l.Name], paths...)
			}
		}

		if opts.render {
			heatPath := filepath.Join(figures, name+"_heatmap.png")
			title := fmt.Sprintf("LSCI %s (window %d)", l.Name, cfg.WindowSize)
			if err := render.Heatmap(heatPath, title, m); err != nil {
				return err
			}
			outputs[l.Name] = append(outputs[l.Name], heatPath)

			if len(compared) > 0 {
				cmpPath := filepath.Join(figures, l.Name+"_window_comparison.png")
				if err := render.Comparison(cmpPath, cropped[0], compared); err != nil {
					return err
				}
				outputs[l.Name] = append(outputs[l.Name], cmpPath)
			}
		}

		if opts.series {
			s, err := engine.Series(cropped, cfg.WindowSize)
			if err != nil {
				return fmt.Errorf("%s: %w", l.Name, err)
			}
			seriesPath, err := output.WriteSeries(opts.outputDir, ts, l.Name, s)
			if err != nil {
				return err
			}
			outputs[l.Name] = append(outputs[l.Name], seriesPath)
		}
	}

	metricsPath, err := output.WriteMetrics(opts.outputDir, metrics)
	if err != nil {
		return err
	}
	logger.Printf("wrote %s", metricsPath)

	meta := map[string]any{
		"calibration": opts.calibration,
		"frames_dir":  opts.framesDir,
		"frame_count": len(seq),
		"frame_size":  []int{w, h},
		"config":      cfg,
		"rois":        rois,
		"outputs":     outputs,
		"elapsed_s":   time.Since(started).Seconds(),
	}
	if err := output.WriteMetadata(opts.outputDir, ts, "analysis", meta); err != nil {
		return err
	}
	logger.Printf("done in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

// writeReduced stores m as a CBOR map and a quantized PNG under name and
// records its direct metrics keyed by the map file.
func writeReduced(outputDir, name, label string, m types.ContrastMap, scale float64, metrics map[string]types.Metrics, logger *log.Logger) ([]string, error) {
	mapPath, err := output.WriteMap(outputDir, name, label, m)
	if err != nil {
		return nil, err
	}
	pngPath := filepath.Join(outputDir, name+".png")
	if err := frames.Save(pngPath, render.Quantize(m, scale)); err != nil {
		return nil, err
	}

	summary, err := perfusion.SummarizeMap(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	metrics[filepath.Base(mapPath)] = summary
	logger.Printf("%s: mean=%.6f total=%.6f std=%.6f", name, summary.Mean, summary.Total, summary.Std)
	return []string{mapPath, pngPath}, nil
}
