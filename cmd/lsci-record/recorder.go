package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"lsci-map-go/internal/cborarray"
	"lsci-map-go/internal/frames"
	"lsci-map-go/internal/output"
	"lsci-map-go/internal/processing"
	"lsci-map-go/internal/types"
)

type metrics struct {
	rawMessages   atomic.Uint64
	imageMessages atomic.Uint64
	metaMessages  atomic.Uint64
	framesDropped atomic.Uint64
	framesWritten atomic.Uint64
	writeErrors   atomic.Uint64
	metadataErrs  atomic.Uint64
	writeCount    atomic.Uint64
	writeNanos    atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"raw_messages_total":       m.rawMessages.Load(),
		"image_messages_total":     m.imageMessages.Load(),
		"meta_messages_total":      m.metaMessages.Load(),
		"frames_dropped_total":     m.framesDropped.Load(),
		"frames_written_total":     m.framesWritten.Load(),
		"frame_write_err_total":    m.writeErrors.Load(),
		"metadata_write_err_total": m.metadataErrs.Load(),
		"write_total":              m.writeCount.Load(),
		"write_nanos_total":        m.writeNanos.Load(),
	}
}

// stopReason says why a recording ended.
type stopReason string

const (
	stopEnd       stopReason = "end"
	stopMaxFrames stopReason = "max_frames"
	stopCancelled stopReason = "cancelled"
	stopDuration  stopReason = "duration"
	stopStream    stopReason = "stream_closed"
)

type summary struct {
	FramesWritten  int        `json:"frames_written"`
	FramesExpected int        `json:"frames_expected"`
	Reason         stopReason `json:"reason"`
	Partial        bool       `json:"partial"`
	Elapsed        float64    `json:"elapsed_seconds"`
}

type savedFrame struct {
	frame types.Frame
	depth int
}

// recorder persists image messages as numbered PNG frames and keeps the
// live preview state served to websocket clients.
type recorder struct {
	outputDir string
	maxFrames int
	workers   int
	logger    *log.Logger
	ui        chan<- any

	metrics metrics
	agg     *processing.Aggregator

	mu       sync.Mutex
	status   map[string]any
	latest   types.ProgressSnapshot
	hasLast  bool
	expected int
	started  time.Time
	runTS    string
}

func newRecorder(outputDir string, maxFrames, workers int, agg *processing.Aggregator, ui chan<- any, logger *log.Logger) *recorder {
	if workers < 1 {
		workers = 1
	}
	return &recorder{
		outputDir: outputDir,
		maxFrames: maxFrames,
		workers:   workers,
		logger:    logger,
		ui:        ui,
		agg:       agg,
		expected:  maxFrames,
		started:   time.Now(),
		status: map[string]any{
			"camera":     "unknown",
			"stream":     "idle",
			"filewriter": "idle",
			"last_frame": "",
			"last_write": "",
		},
	}
}

func (r *recorder) setStatus(key string, value any) {
	r.mu.Lock()
	r.status[key] = value
	r.mu.Unlock()
}

func (r *recorder) statusSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.status)+3)
	for k, v := range r.status {
		out[k] = v
	}
	out["metrics"] = r.metrics.snapshot()
	out["frames_expected"] = r.expected
	out["frames_written"] = r.metrics.framesWritten.Load()
	return out
}

func (r *recorder) latestSnapshot() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasLast {
		return nil
	}
	return r.latest
}

func (r *recorder) runTimestamp() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runTS == "" {
		r.runTS = processing.Timestamp()
	}
	return r.runTS
}

// run consumes messages until an end message, the frame limit, ctx
// cancellation or the source closing, and reports how far it got.
func (r *recorder) run(ctx context.Context, messages <-chan types.RawMessage) (summary, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return summary{}, err
	}
	r.mu.Lock()
	r.started = time.Now()
	r.mu.Unlock()

	toWrite := make(chan savedFrame, 128)
	var wg sync.WaitGroup
	wg.Add(r.workers)
	for i := 0; i < r.workers; i++ {
		go func() {
			defer wg.Done()
			for sf := range toWrite {
				r.save(sf)
			}
		}()
	}

	accepted := 0
	reason := r.consume(ctx, messages, toWrite, &accepted)
	close(toWrite)
	wg.Wait()

	written := int(r.metrics.framesWritten.Load())
	r.mu.Lock()
	expected := r.expected
	elapsed := time.Since(r.started).Seconds()
	r.mu.Unlock()

	s := summary{
		FramesWritten:  written,
		FramesExpected: expected,
		Reason:         reason,
		Elapsed:        elapsed,
	}
	s.Partial = reason == stopStream || (expected > 0 && written < expected)
	r.publish()
	return s, nil
}

func (r *recorder) consume(ctx context.Context, messages <-chan types.RawMessage, toWrite chan<- savedFrame, accepted *int) stopReason {
	for {
		select {
		case <-ctx.Done():
			return stopCancelled
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return stopCancelled
				}
				return stopStream
			}
			r.metrics.rawMessages.Add(1)
			if msg.Type != "image" {
				r.metrics.metaMessages.Add(1)
				r.handleMeta(msg)
				if msg.Type == "end" {
					return stopEnd
				}
				continue
			}

			r.metrics.imageMessages.Add(1)
			frame, ok := processing.ProcessRawFrame(msg.Image)
			if !ok {
				r.metrics.framesDropped.Add(1)
				continue
			}
			r.preview(frame)

			select {
			case <-ctx.Done():
				return stopCancelled
			case toWrite <- savedFrame{frame: frame, depth: msg.Image.Depth}:
			}
			*accepted++
			if r.maxFrames > 0 && *accepted >= r.maxFrames {
				return stopMaxFrames
			}
		}
	}
}

func (r *recorder) handleMeta(msg types.RawMessage) {
	normalized, _ := output.NormalizeJSONValue(msg.Meta).(map[string]any)
	if msg.Type == "start" && normalized != nil {
		if v, ok := normalized["number_of_images"]; ok {
			if n, err := cborarray.ToInt(v); err == nil && n > 0 {
				r.mu.Lock()
				if r.maxFrames <= 0 || n < r.maxFrames {
					r.expected = n
				}
				r.mu.Unlock()
			}
		}
		r.setStatus("run_start", normalized)
	}
	if msg.Type == "end" && normalized != nil {
		r.setStatus("run_end", normalized)
	}

	kind := msg.Type
	if kind == "" {
		kind = "metadata"
	}
	if err := output.WriteMetadata(r.outputDir, r.runTimestamp(), kind, msg.Meta); err != nil {
		r.metrics.metadataErrs.Add(1)
		r.logger.Printf("metadata write failed: %v", err)
	}
}

func (r *recorder) preview(frame types.Frame) {
	contrast, ok := r.agg.AddFrame(frame)

	r.mu.Lock()
	r.status["stream"] = "receiving"
	r.status["last_frame"] = time.Now().Format(time.RFC3339)
	r.latest.Type = "progress"
	r.latest.LastImageID = frame.Index
	r.latest.Width = frame.Width
	r.latest.Height = frame.Height
	r.latest.MeanIntensity = processing.MeanIntensity(frame)
	if ok {
		r.latest.MeanContrast = contrast.Mean
		r.latest.StdContrast = contrast.Std
	}
	r.hasLast = true
	r.mu.Unlock()
}

func (r *recorder) save(sf savedFrame) {
	start := time.Now()
	path := filepath.Join(r.outputDir, processing.FrameName(sf.frame.Index))
	err := frames.Save(path, frames.Image(sf.frame, sf.depth))
	r.metrics.writeCount.Add(1)
	r.metrics.writeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		r.metrics.writeErrors.Add(1)
		r.logger.Printf("frame write failed: %v", err)
		r.setStatus("filewriter", "error")
		return
	}
	r.metrics.framesWritten.Add(1)
	r.mu.Lock()
	r.status["filewriter"] = "ok"
	r.status["last_write"] = time.Now().Format(time.RFC3339)
	r.mu.Unlock()
}

// publish pushes the latest progress to the UI without blocking.
func (r *recorder) publish() {
	r.mu.Lock()
	if !r.hasLast {
		r.mu.Unlock()
		return
	}
	snap := r.latest
	snap.FramesWritten = int(r.metrics.framesWritten.Load())
	snap.FramesExpected = r.expected
	snap.Elapsed = time.Since(r.started).Seconds()
	r.latest = snap
	r.mu.Unlock()

	if r.ui == nil {
		return
	}
	select {
	case r.ui <- snap:
	default:
	}
}

// publishEvery calls publish on every tick until ctx is done.
func (r *recorder) publishEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publish()
		}
	}
}
