package frames

import (
	"fmt"

	"lsci-map-go/internal/types"
)

// Crop restricts every frame of seq to r. Frame indices and sources are kept.
// A rectangle that is empty or does not lie fully inside the frames fails
// with ErrOutOfBounds.
func Crop(seq types.Sequence, r types.Rect) (types.Sequence, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	w, h := seq.Dims()
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: empty region %s", types.ErrOutOfBounds, r)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > w || r.Y+r.Height > h {
		return nil, fmt.Errorf("%w: region %s outside %dx%d frames", types.ErrOutOfBounds, r, w, h)
	}

	out := make(types.Sequence, len(seq))
	for i, f := range seq {
		c := types.NewFrame(f.Index, f.Source, r.Width, r.Height)
		for y := 0; y < r.Height; y++ {
			src := f.Pix[(r.Y+y)*f.Width+r.X : (r.Y+y)*f.Width+r.X+r.Width]
			copy(c.Pix[y*r.Width:(y+1)*r.Width], src)
		}
		out[i] = c
	}
	return out, nil
}
