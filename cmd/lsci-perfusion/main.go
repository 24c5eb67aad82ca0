package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"lsci-map-go/internal/output"
	"lsci-map-go/internal/perfusion"
	"lsci-map-go/internal/render"
)

type options struct {
	input        string
	output       string
	bars         bool
	renderedOnly bool
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "Folder of rendered maps (.png, .jpg) and .cbor maps")
	flag.StringVar(&opts.output, "output", "", "Folder for perfusion_metrics.json and charts (defaults to -input)")
	flag.BoolVar(&opts.bars, "bars", false, "Write mean/std and total bar charts per source")
	flag.BoolVar(&opts.renderedOnly, "rendered-only", false, "Ignore .cbor maps and summarize rendered images only")
	flag.Parse()

	logger := log.New(os.Stderr, "[lsci-perfusion] ", log.LstdFlags)
	if opts.input == "" {
		logger.Fatal("-input is required")
	}
	if opts.output == "" {
		opts.output = opts.input
	}
	if err := run(opts, logger); err != nil {
		logger.Fatalf("perfusion batch failed: %v", err)
	}
}

func run(opts options, logger *log.Logger) error {
	result, err := perfusion.Batch(opts.input, perfusion.BatchOptions{RenderedOnly: opts.renderedOnly}, logger)
	if err != nil {
		return err
	}
	if len(result.Metrics) == 0 {
		logger.Printf("no readable maps in %s", opts.input)
	}
	if len(result.Failed) > 0 {
		logger.Printf("%d file(s) skipped", len(result.Failed))
	}

	path, err := output.WriteMetrics(opts.output, result.Metrics)
	if err != nil {
		return err
	}
	logger.Printf("wrote %s", path)

	if !opts.bars {
		return nil
	}
	charts := filepath.Join(opts.output, "charts")
	for _, name := range result.Names() {
		if _, err := render.MetricBars(charts, name, result.Metrics[name]); err != nil {
			return err
		}
	}
	logger.Printf("wrote %d chart pairs to %s", len(result.Metrics), charts)
	return nil
}
