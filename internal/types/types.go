package types

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/mat"
)

// Frame is a single-channel intensity image stored row-major. 8-bit sources
// keep their 0..255 range; 16-bit sources keep their full range.
type Frame struct {
	Index  int      `json:"index"`
	Source string   `json:"source"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Pix    []uint16 `json:"-"`
}

func NewFrame(index int, source string, width, height int) Frame {
	return Frame{
		Index:  index,
		Source: source,
		Width:  width,
		Height: height,
		Pix:    make([]uint16, width*height),
	}
}

func (f Frame) At(x, y int) uint16 {
	return f.Pix[y*f.Width+x]
}

// Sequence is a temporally ordered run of frames of identical shape.
type Sequence []Frame

func (s Sequence) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty sequence", ErrInsufficientFrames)
	}
	w, h := s[0].Width, s[0].Height
	for i, f := range s {
		if f.Width != w || f.Height != h {
			return fmt.Errorf("%w: frame %d is %dx%d, expected %dx%d", ErrShapeMismatch, i, f.Width, f.Height, w, h)
		}
		if len(f.Pix) != f.Width*f.Height {
			return fmt.Errorf("%w: frame %d has %d samples for %dx%d", ErrShapeMismatch, i, len(f.Pix), f.Width, f.Height)
		}
	}
	return nil
}

// Dims returns the shared frame size. Call Validate first.
func (s Sequence) Dims() (width, height int) {
	if len(s) == 0 {
		return 0, 0
	}
	return s[0].Width, s[0].Height
}

// Rect is a pixel-space bounding box in calibration image coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

func RectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("{x:%d y:%d w:%d h:%d}", r.X, r.Y, r.Width, r.Height)
}

// ReducedCenter marks a ContrastMap that is an average over many windows.
const ReducedCenter = -1

// ContrastMap holds K = sigma/(mu+eps) per pixel. Data has Height rows and
// Width columns of the cropped ROI.
type ContrastMap struct {
	WindowSize int
	Center     int
	Data       *mat.Dense
}

func (m ContrastMap) Dims() (rows, cols int) {
	if m.Data == nil {
		return 0, 0
	}
	return m.Data.Dims()
}

// Values returns the map as a row-major slice of rows*cols values. A
// contiguous matrix shares its backing array; a sliced view is copied.
func (m ContrastMap) Values() []float64 {
	if m.Data == nil {
		return nil
	}
	raw := m.Data.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		out = append(out, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols]...)
	}
	return out
}

func (m ContrastMap) Reduced() bool {
	return m.Center == ReducedCenter
}

type Metrics struct {
	Mean  float64 `json:"mean"`
	Total float64 `json:"total"`
	Std   float64 `json:"std"`
}

// WindowMetrics pairs one per-window map with its summary.
type WindowMetrics struct {
	Center  int     `json:"center"`
	Metrics Metrics `json:"metrics"`
}

type Series struct {
	WindowSize int
	Maps       []ContrastMap
	Metrics    []WindowMetrics
}
