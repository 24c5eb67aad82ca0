package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lsci-map-go/internal/camera"
	"lsci-map-go/internal/config"
	"lsci-map-go/internal/ingest"
	"lsci-map-go/internal/output"
	"lsci-map-go/internal/processing"
	"lsci-map-go/internal/server"
	"lsci-map-go/internal/simulator"
	"lsci-map-go/internal/types"
)

func main() {
	var (
		port           = flag.Int("port", 8888, "HTTP port for the status page")
		endpoint       = flag.String("endpoint", "tcp://localhost:31001", "ZMQ endpoint of the camera bridge")
		cameraURL      = flag.String("camera-url", "", "Camera bridge HTTP base URL (configure, arm and status)")
		apiVersion     = flag.String("camera-api-version", camera.DefaultAPIVersion, "Camera bridge API version")
		cameraPoll     = flag.Duration("camera-poll", 1*time.Second, "Polling interval for camera status")
		exposure       = flag.Float64("exposure-us", 0, "Exposure time in microseconds (0 keeps the camera setting)")
		frameRate      = flag.Float64("frame-rate", 0, "Acquisition frame rate (0 keeps the camera setting)")
		pixelFormat    = flag.String("pixel-format", "", "Pixel format, e.g. Mono8 or Mono12")
		gain           = flag.Float64("gain", 0, "Analog gain (0 keeps the camera setting)")
		debug          = flag.Bool("debug", false, "Record simulated speckle instead of a camera")
		debugAcqRate   = flag.Float64("debug-acq-rate", 30, "Simulated acquisition rate (frames/sec)")
		debugWidth     = flag.Int("debug-width", 128, "Simulated frame width")
		debugHeight    = flag.Int("debug-height", 128, "Simulated frame height")
		outputDir      = flag.String("output-dir", "frames", "Directory for recorded frames")
		duration       = flag.Duration("duration", 10*time.Second, "Recording duration (0 for no limit)")
		maxFrames      = flag.Int("frames", 0, "Stop after this many frames (0 for no limit)")
		previewWindow  = flag.Int("preview-window", 5, "Window size of the live contrast preview")
		workers        = flag.Int("workers", 2, "Frame writer workers")
		rawLogEnabled  = flag.Bool("raw-log", false, "Write raw CBOR messages to disk")
		rawLogDir      = flag.String("raw-log-dir", "rawlog", "Directory for raw ingest logs")
		uiRate         = flag.Duration("ui-rate", 500*time.Millisecond, "Progress update interval for websocket clients")
		ingestLogEvery = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
		ingestFallback = flag.Bool("ingest-fallback", false, "Fall back to the simulator when ingest cannot start")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Port:       *port,
		Endpoint:   *endpoint,
		CameraURL:  *cameraURL,
		CameraPoll: *cameraPoll,
		Camera: config.CameraSettings{
			ExposureUS:  *exposure,
			FrameRate:   *frameRate,
			PixelFormat: *pixelFormat,
			Gain:        *gain,
		},
		Debug:          *debug,
		DebugAcqRate:   *debugAcqRate,
		DebugWidth:     *debugWidth,
		DebugHeight:    *debugHeight,
		OutputDir:      *outputDir,
		Duration:       *duration,
		MaxFrames:      *maxFrames,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		UIRate:         *uiRate,
		IngestLogEvery: *ingestLogEvery,
		IngestFallback: *ingestFallback,
	}

	logger := log.New(os.Stderr, "[lsci-record] ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *apiVersion, *previewWindow, *workers, logger); err != nil {
		logger.Fatalf("recording failed: %v", err)
	}
}

func run(ctx context.Context, cfg config.AppConfig, apiVersion string, previewWindow, workers int, logger *log.Logger) error {
	useCamera := !cfg.Debug && cfg.CameraURL != ""
	if useCamera {
		if err := camera.Configure(ctx, cfg.CameraURL, apiVersion, cfg.Camera); err != nil {
			return fmt.Errorf("configure camera: %w", err)
		}
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	acqCtx := ctx
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	acqCtx, stopAcq := context.WithCancel(acqCtx)
	defer stopAcq()

	uiMessages := make(chan any, 16)
	analysis := config.DefaultAnalysis()
	analysis.Workers = 1
	agg := processing.NewAggregator(previewWindow, processing.NewEngine(analysis, nil))
	rec := newRecorder(cfg.OutputDir, cfg.MaxFrames, workers, agg, uiMessages, logger)

	messages, err := openSource(acqCtx, cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Debug {
		rec.setStatus("camera", "simulator")
	}

	if useCamera {
		go camera.Poll(serverCtx, cfg.CameraURL, apiVersion, cfg.CameraPoll, func(update camera.Status) {
			rec.setStatus("camera", update.Camera)
			rec.setStatus("camera_stream", update.Stream)
		})
		if err := camera.Command(ctx, cfg.CameraURL, apiVersion, "arm"); err != nil {
			return fmt.Errorf("arm camera: %w", err)
		}
	}

	go rec.publishEvery(serverCtx, cfg.UIRate)
	go func() {
		logger.Printf("status page at http://localhost:%d", cfg.Port)
		if err := server.Run(serverCtx, cfg, uiMessages, rec.statusSnapshot, rec.latestSnapshot, nil); err != nil {
			logger.Printf("server stopped: %v", err)
		}
	}()

	result, err := rec.run(acqCtx, messages)
	stopAcq()
	if useCamera {
		disarmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := camera.Command(disarmCtx, cfg.CameraURL, apiVersion, "disarm"); err != nil {
			logger.Printf("disarm camera: %v", err)
		}
		cancel()
	}
	if err != nil {
		return err
	}
	if result.Reason == stopCancelled && ctx.Err() == nil {
		result.Reason = stopDuration
	}

	if err := output.WriteMetadata(cfg.OutputDir, rec.runTimestamp(), "record", map[string]any{
		"frames_written":  result.FramesWritten,
		"frames_expected": result.FramesExpected,
		"reason":          string(result.Reason),
		"partial":         result.Partial,
		"elapsed_seconds": result.Elapsed,
		"endpoint":        cfg.Endpoint,
		"debug":           cfg.Debug,
		"camera":          cfg.Camera,
	}); err != nil {
		logger.Printf("metadata write failed: %v", err)
	}

	if result.Partial {
		logger.Printf("recording stopped early (%s): %d of %d frames written to %s",
			result.Reason, result.FramesWritten, result.FramesExpected, cfg.OutputDir)
	} else {
		logger.Printf("recorded %d frames to %s in %.1fs (%s)",
			result.FramesWritten, cfg.OutputDir, result.Elapsed, result.Reason)
	}
	return nil
}

// openSource returns the simulator in debug mode and the ZMQ ingest stream
// otherwise, falling back to the simulator when ingest cannot start and the
// fallback is enabled.
func openSource(ctx context.Context, cfg config.AppConfig, logger *log.Logger) (<-chan types.RawMessage, error) {
	if cfg.Debug {
		return simulator.Stream(ctx, cfg.DebugWidth, cfg.DebugHeight, cfg.DebugAcqRate), nil
	}

	var recorder ingest.RawRecorder
	if cfg.RawLogEnabled {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_cbor")
		if err != nil {
			return nil, fmt.Errorf("start raw log: %w", err)
		}
		logger.Printf("raw log at %s", writer.Path())
		recorder = writer
		go func() {
			<-ctx.Done()
			if err := writer.Close(); err != nil {
				logger.Printf("raw log close failed: %v", err)
			}
		}()
	}

	messages, err := ingest.Stream(ctx, cfg.Endpoint, cfg.IngestLogEvery, recorder)
	if err != nil {
		if !cfg.IngestFallback {
			return nil, fmt.Errorf("start ingest: %w", err)
		}
		logger.Printf("failed to start ingest: %v; falling back to simulator", err)
		return simulator.Stream(ctx, cfg.DebugWidth, cfg.DebugHeight, cfg.DebugAcqRate), nil
	}
	return messages, nil
}
