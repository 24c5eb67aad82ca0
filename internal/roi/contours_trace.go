//go:build !gocv

package roi

import "image"

// Moore neighbourhood, clockwise on screen starting west.
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return -1
}

// findContours labels 8-connected foreground components in raster order and
// traces the outer border of each one.
func findContours(mask *image.Gray) ([]Contour, error) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	fg := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && mask.Pix[p.Y*mask.Stride+p.X] != 0
	}

	seen := make([]bool, w*h)
	var contours []Contour
	var queue []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			start := image.Pt(x, y)
			if seen[y*w+x] || !fg(start) {
				continue
			}

			seen[y*w+x] = true
			queue = append(queue[:0], start)
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				for _, d := range moore {
					q := p.Add(d)
					if fg(q) && !seen[q.Y*w+q.X] {
						seen[q.Y*w+q.X] = true
						queue = append(queue, q)
					}
				}
			}

			pts := traceBorder(start, fg)
			contours = append(contours, Contour{
				Points: pts,
				Area:   polygonArea(pts),
				Bounds: boundsOf(pts),
			})
		}
	}
	return contours, nil
}

// traceBorder walks the outer border clockwise from start, which must be the
// first foreground pixel of its component in raster order. It stops when the
// walk is about to repeat its first move from start.
func traceBorder(start image.Point, fg func(image.Point) bool) []image.Point {
	pts := []image.Point{start}
	p := start
	back := 0
	first := -1
	for {
		dir := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if fg(p.Add(moore[d])) {
				dir = d
				break
			}
		}
		if dir < 0 {
			return pts
		}
		if p == start && dir == first {
			break
		}
		if first < 0 {
			first = dir
		}
		q := p.Add(moore[dir])
		back = mooreIndex(p.Add(moore[(dir+7)%8]).Sub(q))
		p = q
		pts = append(pts, p)
	}
	if len(pts) > 1 && pts[len(pts)-1] == start {
		pts = pts[:len(pts)-1]
	}
	return pts
}
