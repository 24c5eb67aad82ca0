// Package roi locates colour-coded marker rectangles in a calibration image.
package roi

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"lsci-map-go/internal/config"
	"lsci-map-go/internal/types"
)

// Contour is one external border found in a binary mask.
type Contour struct {
	Points []image.Point
	Area   float64
	Bounds image.Rectangle
}

type Detector struct {
	Labels    []config.Label
	Threshold uint8
	MinArea   float64
}

func NewDetector(cfg config.AnalysisConfig) *Detector {
	return &Detector{
		Labels:    cfg.Labels,
		Threshold: cfg.Threshold,
		MinArea:   cfg.MinArea,
	}
}

// Detect returns the bounding box of the selected marker for every label.
// A label whose channel holds no contour larger than MinArea fails the whole
// call with ErrRegionNotFound.
func (d *Detector) Detect(img image.Image) (map[string]types.Rect, error) {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return nil, fmt.Errorf("%w: calibration image has a single channel", types.ErrInvalidImage)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty calibration image", types.ErrInvalidImage)
	}

	out := make(map[string]types.Rect, len(d.Labels))
	for _, label := range d.Labels {
		if label.Channel < 0 || label.Channel > 2 {
			return nil, fmt.Errorf("%w: label %q channel %d", types.ErrInvalidConfig, label.Name, label.Channel)
		}
		mask := Mask(img, label.Channel, d.Threshold)
		contours, err := findContours(mask)
		if err != nil {
			return nil, fmt.Errorf("contours for %q: %w", label.Name, err)
		}
		best, ok := Select(contours, d.MinArea)
		if !ok {
			return nil, fmt.Errorf("%w: %q", types.ErrRegionNotFound, label.Name)
		}
		out[label.Name] = types.RectFrom(best.Bounds)
	}
	return out, nil
}

// Select keeps contours with Area > minArea and returns the largest one.
// Equal areas resolve to the smaller Y, then the smaller X, of the bounding box.
func Select(contours []Contour, minArea float64) (Contour, bool) {
	var kept []Contour
	for _, c := range contours {
		if c.Area > minArea {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return Contour{}, false
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Area != b.Area {
			return a.Area > b.Area
		}
		if a.Bounds.Min.Y != b.Bounds.Min.Y {
			return a.Bounds.Min.Y < b.Bounds.Min.Y
		}
		return a.Bounds.Min.X < b.Bounds.Min.X
	})
	return kept[0], true
}

// Mask binarizes one RGB channel: 255 where the sample is above threshold,
// 0 elsewhere. The result always starts at the origin.
func Mask(img image.Image, channel int, threshold uint8) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < b.Dx(); x++ {
				if row[x*4+channel] > threshold {
					mask.Pix[y*mask.Stride+x] = 255
				}
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < b.Dx(); x++ {
				if row[x*4+channel] > threshold {
					mask.Pix[y*mask.Stride+x] = 255
				}
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				v := [3]uint8{c.R, c.G, c.B}[channel]
				if v > threshold {
					mask.Pix[y*mask.Stride+x] = 255
				}
			}
		}
	}
	return mask
}

// polygonArea is the shoelace area of a closed polygon.
func polygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	if sum < 0 {
		sum = -sum
	}
	return float64(sum) / 2
}

func boundsOf(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}
