package types

// RawMessage is one decoded message from a camera bridge or the simulator.
// Type is "start", "image" or "end"; Image is set only for "image".
type RawMessage struct {
	Type  string
	Meta  map[string]any
	Image RawFrame
}

type RawFrame struct {
	ImageID   int
	StartTime float64
	Width     int
	Height    int
	Depth     int // bits per sample, 8 or 16
	Pix       []uint16
}

// ProgressSnapshot is broadcast to websocket clients while recording.
type ProgressSnapshot struct {
	Type           string  `json:"type"`
	FramesWritten  int     `json:"frames_written"`
	FramesExpected int     `json:"frames_expected"`
	LastImageID    int     `json:"last_image_id"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	MeanIntensity  float64 `json:"mean_intensity"`
	MeanContrast   float64 `json:"mean_contrast"`
	StdContrast    float64 `json:"std_contrast"`
	Elapsed        float64 `json:"elapsed_seconds"`
}
