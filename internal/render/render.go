// Package render draws contrast maps and perfusion metrics for human review.
// Rendered output is a presentation artifact: it does not round-trip back to
// the floating-point maps.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"lsci-map-go/internal/types"
)

const paletteSize = 256

// Quantize maps K to 8-bit gray as min(K*scale, 255), truncated.
func Quantize(m types.ContrastMap, scale float64) *image.Gray {
	rows, cols := m.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	values := m.Values()
	for i := 0; i < rows*cols; i++ {
		v := values[i] * scale
		switch {
		case math.IsNaN(v) || v <= 0:
			v = 0
		case v > 255:
			v = 255
		}
		img.Pix[i] = uint8(v)
	}
	return img
}

// grid adapts a row-major buffer to plotter.GridXYZ.
type grid struct {
	rows, cols int
	values     []float64
}

func (g grid) Dims() (c, r int)   { return g.cols, g.rows }
func (g grid) Z(c, r int) float64 { return g.values[r*g.cols+c] }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }

func mapGrid(m types.ContrastMap) grid {
	rows, cols := m.Dims()
	return grid{rows: rows, cols: cols, values: m.Values()}
}

func frameGrid(f types.Frame) grid {
	values := make([]float64, len(f.Pix))
	for i, v := range f.Pix {
		values[i] = float64(v)
	}
	return grid{rows: f.Height, cols: f.Width, values: values}
}

func (g grid) bounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.values[:g.rows*g.cols] {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi <= lo {
		hi = lo + 1e-9
	}
	return lo, hi
}

type grayPalette int

func (n grayPalette) Colors() []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		out[i] = color.Gray{Y: uint8(i * 255 / (int(n) - 1))}
	}
	return out
}

func heatPlot(title string, g grid, pal palette.Palette) *plot.Plot {
	lo, hi := g.bounds()
	hm := plotter.NewHeatMap(g, pal)
	hm.Min, hm.Max = lo, hi

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	// Image rows grow downwards.
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(hm)
	return p
}

func colorBar(label string, lo, hi float64) *plot.Plot {
	cm := moreland.SmoothBlueRed()
	cm.SetMax(hi)
	cm.SetMin(lo)

	p := plot.New()
	p.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	p.Y.Label.Text = label
	p.HideX()
	return p
}

func contrastPalette() palette.Palette {
	cm := moreland.SmoothBlueRed()
	cm.SetMax(1)
	cm.SetMin(0)
	return cm.Palette(paletteSize)
}

// Heatmap writes m as a colour heatmap with a vertical colour bar.
func Heatmap(path, title string, m types.ContrastMap) error {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("%w: empty contrast map", types.ErrEmptyReduction)
	}
	g := mapGrid(m)
	lo, hi := g.bounds()

	width, height := 8*vg.Inch, 6*vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	barWidth := 1.2 * vg.Inch

	heatPlot(title, g, contrastPalette()).Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	colorBar("Speckle contrast (K)", lo, hi).Draw(draw.Crop(dc, width-barWidth, 0, 0, 0))
	return savePNG(path, img)
}

// Comparison draws the baseline frame followed by one panel per window size.
func Comparison(path string, baseline types.Frame, maps []types.ContrastMap) error {
	if len(maps) == 0 {
		return fmt.Errorf("%w: nothing to compare", types.ErrEmptyReduction)
	}

	row := []*plot.Plot{heatPlot("Baseline frame", frameGrid(baseline), grayPalette(paletteSize))}
	for _, m := range maps {
		row = append(row, heatPlot(fmt.Sprintf("Window %d", m.WindowSize), mapGrid(m), contrastPalette()))
	}

	width, height := vg.Length(len(row))*4*vg.Inch, 4*vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(row),
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}
	return savePNG(path, img)
}

// MetricBars writes the mean/std and total bar charts for one source and
// returns both paths.
func MetricBars(outputDir, source string, m types.Metrics) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	name := source
	if filepath.Ext(name) != ".png" {
		name += ".png"
	}

	meanStd, err := barPlot("Perfusion Metrics (Mean and Std)", []string{"Mean", "Std"},
		plotter.Values{m.Mean, m.Std}, color.RGBA{G: 128, A: 255})
	if err != nil {
		return nil, err
	}
	total, err := barPlot("Perfusion Metric (Total)", []string{"Total"},
		plotter.Values{m.Total}, color.RGBA{B: 255, A: 255})
	if err != nil {
		return nil, err
	}

	paths := []string{
		filepath.Join(outputDir, "output_mean_std_"+name),
		filepath.Join(outputDir, "output_total_"+name),
	}
	for i, p := range []*plot.Plot{meanStd, total} {
		if err := p.Save(8*vg.Inch, 5*vg.Inch, paths[i]); err != nil {
			return nil, fmt.Errorf("%w: save %s: %v", types.ErrIO, paths[i], err)
		}
	}
	return paths, nil
}

func barPlot(title string, names []string, values plotter.Values, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Values"

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = c
	p.Add(bars)

	xys := make(plotter.XYs, len(values))
	text := make([]string, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
		text[i] = fmt.Sprintf("%.2f", v)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return nil, fmt.Errorf("bar labels: %w", err)
	}
	p.Add(labels)
	p.NominalX(names...)
	return p, nil
}

func savePNG(path string, img *vgimg.Canvas) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", types.ErrIO, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: %v", types.ErrIO, closeErr)
		}
	}()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrIO, path, err)
	}
	return nil
}
