package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"lsci-map-go/internal/types"
)

// Label names a coloured marker in the calibration image and the RGB channel
// (0=R, 1=G, 2=B) it is drawn in.
type Label struct {
	Name    string `json:"name"`
	Channel int    `json:"channel"`
}

// AnalysisConfig enumerates every tunable of the contrast pipeline.
type AnalysisConfig struct {
	WindowSize    int     `json:"window_size"`
	WindowSizes   []int   `json:"window_sizes"`
	Labels        []Label `json:"labels"`
	Threshold     uint8   `json:"threshold"`
	MinArea       float64 `json:"min_area"`
	Epsilon       float64 `json:"epsilon"`
	Workers       int     `json:"workers"`
	QuantizeScale float64 `json:"quantize_scale"`
}

func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		WindowSize:  5,
		WindowSizes: []int{3, 5, 7, 9},
		Labels: []Label{
			{Name: "blue", Channel: 2},
			{Name: "red", Channel: 0},
		},
		Threshold:     200,
		MinArea:       100,
		Epsilon:       1e-6,
		Workers:       runtime.NumCPU(),
		QuantizeScale: 255,
	}
}

// Load reads a JSON config over the defaults. A missing file is not an error:
// the defaults are returned and a warning is logged.
func Load(path string, logger *log.Logger) (AnalysisConfig, error) {
	cfg := DefaultAnalysis()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if logger != nil {
				logger.Printf("warn: config file %q not found, using defaults", path)
			}
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c AnalysisConfig) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size %d", types.ErrInvalidConfig, c.WindowSize)
	}
	for _, w := range c.WindowSizes {
		if w < 1 {
			return fmt.Errorf("%w: window_sizes entry %d", types.ErrInvalidConfig, w)
		}
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("%w: no labels", types.ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Labels))
	for _, l := range c.Labels {
		if l.Name == "" {
			return fmt.Errorf("%w: empty label name", types.ErrInvalidConfig)
		}
		if l.Channel < 0 || l.Channel > 2 {
			return fmt.Errorf("%w: label %q channel %d", types.ErrInvalidConfig, l.Name, l.Channel)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: duplicate label %q", types.ErrInvalidConfig, l.Name)
		}
		seen[l.Name] = true
	}
	if c.MinArea < 0 {
		return fmt.Errorf("%w: min_area %v", types.ErrInvalidConfig, c.MinArea)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("%w: epsilon must be positive, got %v", types.ErrInvalidConfig, c.Epsilon)
	}
	if c.QuantizeScale <= 0 {
		return fmt.Errorf("%w: quantize_scale %v", types.ErrInvalidConfig, c.QuantizeScale)
	}
	return nil
}

// ParseWindowSizes parses "3,5,7,9".
func ParseWindowSizes(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: window size %q", types.ErrInvalidConfig, p)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseLabels parses "blue:2,red:0".
func ParseLabels(value string) ([]Label, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var out []Label
	for _, p := range strings.Split(value, ",") {
		name, ch, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			return nil, fmt.Errorf("%w: label %q, want name:channel", types.ErrInvalidConfig, p)
		}
		n, err := strconv.Atoi(ch)
		if err != nil {
			return nil, fmt.Errorf("%w: label %q channel", types.ErrInvalidConfig, p)
		}
		out = append(out, Label{Name: name, Channel: n})
	}
	return out, nil
}
