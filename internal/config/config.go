package config

import "time"

// AppConfig drives lsci-record. It is filled from flags in main.
type AppConfig struct {
	Port           int
	Endpoint       string
	CameraURL      string
	CameraPoll     time.Duration
	Camera         CameraSettings
	Debug          bool
	DebugAcqRate   float64
	DebugWidth     int
	DebugHeight    int
	OutputDir      string
	Duration       time.Duration
	MaxFrames      int
	RawLogEnabled  bool
	RawLogDir      string
	UIRate         time.Duration
	IngestLogEvery int
	IngestFallback bool
}

type CameraSettings struct {
	ExposureUS  float64 `json:"exposure_us"`
	FrameRate   float64 `json:"frame_rate"`
	PixelFormat string  `json:"pixel_format"`
	Gain        float64 `json:"gain"`
}
