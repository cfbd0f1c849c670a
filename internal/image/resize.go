package imagepkg

import (
	"image"

	"github.com/disintegration/imaging"
)

// ScaledSize returns the dimensions that bring the narrower side of a w x h
// image to base while keeping the aspect ratio. Results are floored and never
// below 1.
func ScaledSize(w, h, base int) (int, int) {
	if w <= 0 || h <= 0 || base <= 0 {
		return max(w, 1), max(h, 1)
	}
	if h >= w {
		return base, scaleSide(h, base, w)
	}
	return scaleSide(w, base, h), base
}

// scaleSide floors long*base/short exactly, so a square stays square.
func scaleSide(long, base, short int) int {
	return max(int(int64(long)*int64(base)/int64(short)), 1)
}

// ResizeToBase scales img with a Lanczos filter so that its narrower side is base.
func ResizeToBase(img image.Image, base int) *image.NRGBA {
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), base)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
