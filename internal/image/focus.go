package imagepkg

import (
	"image"
	"image/draw"
)

// Box is a detector hit in image-pixel coordinates.
type Box struct {
	X, Y, W, H int
}

// Point is the focus coordinate the cropper centres on. The zero value means
// nothing was detected.
type Point struct {
	X, Y int
}

// IsZero reports whether p is the "no detection" sentinel.
func (p Point) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Detector finds faces (or other features) in a grayscale raster.
type Detector interface {
	Detect(gray *image.Gray, scaleFactor float64) ([]Box, error)
}

// ResolveFocus reduces detector boxes to a single point.
//
// Each box is folded into the accumulator as the integer midpoint of the
// accumulator and the box, starting from the first box. This is a cascading
// average, not a mean: later boxes weigh more. Suspect, but existing badges
// were cropped with this weighting.
func ResolveFocus(boxes []Box) Point {
	if len(boxes) == 0 {
		return Point{}
	}
	acc := boxes[0]
	for _, bx := range boxes {
		acc.W = (acc.W + bx.W) / 2
		acc.H = (acc.H + bx.H) / 2
		acc.X = (acc.X + bx.X) / 2
		acc.Y = (acc.Y + bx.Y) / 2
	}
	return Point{X: acc.X + acc.W/2, Y: acc.Y + acc.H/2}
}

// ToGray converts img to an 8-bit grayscale raster anchored at (0,0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
