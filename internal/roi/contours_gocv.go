//go:build gocv

package roi

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func findContours(mask *image.Gray) ([]Contour, error) {
	mat, err := gocv.NewMatFromBytes(mask.Rect.Dy(), mask.Rect.Dx(), gocv.MatTypeCV8UC1, mask.Pix)
	if err != nil {
		return nil, fmt.Errorf("mask to mat: %w", err)
	}
	defer mat.Close()

	found := gocv.FindContours(mat, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	contours := make([]Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		pv := found.At(i)
		contours = append(contours, Contour{
			Points: pv.ToPoints(),
			Area:   gocv.ContourArea(pv),
			Bounds: gocv.BoundingRect(pv),
		})
	}
	return contours, nil
}
