// Package frames loads ordered frame sequences from disk and crops them.
//
// Temporal order comes from the numeric index embedded in each filename
// (the last run of digits), never from string order, so frame_9.png sorts
// before frame_10.png. A directory whose files cannot be ordered that way is
// rejected instead of being guessed at.
package frames

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"lsci-map-go/internal/types"
)

var DefaultExtensions = []string{".png"}

type Entry struct {
	Index int
	Path  string
}

// ExtractIndex returns the last run of decimal digits in the base name.
func ExtractIndex(path string) (int, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	end := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] >= '0' && base[i] <= '9' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return 0, fmt.Errorf("%w: no frame index in %q", types.ErrOrdering, filepath.Base(path))
	}
	start := end - 1
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}
	n, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0, fmt.Errorf("%w: frame index in %q: %v", types.ErrOrdering, filepath.Base(path), err)
	}
	return n, nil
}

// List returns the frame files of dir in verified temporal order.
func List(dir string, exts []string) ([]Entry, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %v", types.ErrIO, dir, err)
	}

	var entries []Entry
	seen := make(map[int]string)
	for _, de := range dirEntries {
		if de.IsDir() || !hasExt(de.Name(), exts) {
			continue
		}
		idx, err := ExtractIndex(de.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[idx]; dup {
			return nil, fmt.Errorf("%w: %q and %q share index %d", types.ErrOrdering, prev, de.Name(), idx)
		}
		seen[idx] = de.Name()
		entries = append(entries, Entry{Index: idx, Path: filepath.Join(dir, de.Name())})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Index < entries[j].Index
	})
	return entries, nil
}

// Load reads every frame of dir, converted to single-channel intensity.
func Load(dir string) (types.Sequence, error) {
	entries, err := List(dir, nil)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no frames in %q", types.ErrInsufficientFrames, dir)
	}

	seq := make(types.Sequence, 0, len(entries))
	for _, e := range entries {
		img, err := LoadImage(e.Path)
		if err != nil {
			return nil, err
		}
		frame := ToFrame(img)
		frame.Index = e.Index
		frame.Source = filepath.Base(e.Path)
		seq = append(seq, frame)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return seq, nil
}

func LoadImage(path string) (img image.Image, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", types.ErrIO, path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close %q: %v", types.ErrIO, path, closeErr)
		}
	}()
	img, _, err = image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", types.ErrIO, path, err)
	}
	return img, nil
}

// ToFrame keeps 16-bit gray samples as they are and reduces everything else
// to 8-bit luma, matching a grayscale read of the file.
func ToFrame(img image.Image) types.Frame {
	b := img.Bounds()
	frame := types.NewFrame(0, "", b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				frame.Pix[y*frame.Width+x] = src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			}
		}
	default:
		gray := ToGray(img)
		gb := gray.Bounds()
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				frame.Pix[y*frame.Width+x] = uint16(gray.GrayAt(gb.Min.X+x, gb.Min.Y+y).Y)
			}
		}
	}
	return frame
}

func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Image converts a frame back to an 8-bit or 16-bit gray image.
func Image(f types.Frame, depth int) image.Image {
	r := image.Rect(0, 0, f.Width, f.Height)
	if depth > 8 {
		img := image.NewGray16(r)
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: f.At(x, y)})
			}
		}
		return img
	}
	img := image.NewGray(r)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y)
			if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// Save writes img as PNG.
func Save(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", types.ErrIO, path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close %q: %v", types.ErrIO, path, closeErr)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("%w: encode %q: %v", types.ErrIO, path, err)
	}
	return nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
