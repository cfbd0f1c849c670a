package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrImageTooSmall is returned when an image cannot hold the crop window.
var ErrImageTooSmall = errors.New("image is too small")

// CropWindow is a square region of the resized photo.
type CropWindow struct {
	Left, Top, Right, Bottom int
}

// Rect returns the window as an image rectangle.
func (w CropWindow) Rect() image.Rectangle {
	return image.Rect(w.Left, w.Top, w.Right, w.Bottom)
}

// CheckSize fails with ErrImageTooSmall if a w x h image is narrower than side
// in either dimension.
func CheckSize(w, h, side int) error {
	if w < side || h < side {
		return fmt.Errorf("%w: %dx%d, need at least %dx%d", ErrImageTooSmall, w, h, side, side)
	}
	return nil
}

// ComputeCropWindow places a side x side window around focus inside a w x h
// image. A zero focus recentres on the image centre; otherwise each axis is
// pinned independently so the window never leaves the image.
func ComputeCropWindow(w, h int, focus Point, side int) (CropWindow, error) {
	if err := CheckSize(w, h, side); err != nil {
		return CropWindow{}, err
	}
	half := float64(side) / 2

	var cx, cy float64
	if focus.IsZero() {
		cx, cy = float64(w/2), float64(h/2)
	} else {
		cx, cy = float64(focus.X), float64(focus.Y)
	}
	cx = pinAxis(cx, half, float64(w))
	cy = pinAxis(cy, half, float64(h))

	left := int(math.Floor(cx - half))
	top := int(math.Floor(cy - half))
	return CropWindow{Left: left, Top: top, Right: left + side, Bottom: top + side}, nil
}

func pinAxis(c, half, dim float64) float64 {
	if c-half <= 0 {
		return half
	}
	if c+half > dim {
		return dim - half
	}
	return c
}

// CropAround crops img to the window computed for focus.
func CropAround(img image.Image, focus Point, side int) (*image.NRGBA, CropWindow, error) {
	b := img.Bounds()
	win, err := ComputeCropWindow(b.Dx(), b.Dy(), focus, side)
	if err != nil {
		return nil, CropWindow{}, err
	}
	return imaging.Crop(img, win.Rect().Add(b.Min)), win, nil
}
