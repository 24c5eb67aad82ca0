package processing

import (
	"fmt"

	"lsci-map-go/internal/types"
)

// ProcessRawFrame turns an acquired image message into a Frame. Messages
// with a negative id or a payload that does not match their shape are dropped.
func ProcessRawFrame(raw types.RawFrame) (types.Frame, bool) {
	if raw.ImageID < 0 || raw.Width <= 0 || raw.Height <= 0 {
		return types.Frame{}, false
	}
	if len(raw.Pix) != raw.Width*raw.Height {
		return types.Frame{}, false
	}

	pix := make([]uint16, len(raw.Pix))
	copy(pix, raw.Pix)
	return types.Frame{
		Index:  raw.ImageID,
		Source: FrameName(raw.ImageID),
		Width:  raw.Width,
		Height: raw.Height,
		Pix:    pix,
	}, true
}

// FrameName is the file name frames are persisted under.
func FrameName(index int) string {
	return fmt.Sprintf("frame_%06d.png", index)
}

func MeanIntensity(f types.Frame) float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range f.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(f.Pix))
}
