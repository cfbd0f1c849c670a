package imagepkg

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// TemplateGeometry is the badge coordinate system. Canvas size comes from the
// template image; the avatar slot from configuration.
type TemplateGeometry struct {
	CanvasWidth   int `json:"canvas_width"`
	CanvasHeight  int `json:"canvas_height"`
	AvatarCenterX int `json:"avatar_center_x"`
	AvatarCenterY int `json:"avatar_center_y"`
	AvatarWidth   int `json:"avatar_width"`
	AvatarHeight  int `json:"avatar_height"`
	AvatarPadding int `json:"avatar_padding"`
}

// CropSide is both the resize base width and the square crop side.
func (g TemplateGeometry) CropSide() int {
	return g.AvatarWidth + g.AvatarPadding
}

// AvatarOffset is the top-left corner where a side x side avatar is pasted so
// that it is centred on the avatar slot.
func (g TemplateGeometry) AvatarOffset(side int) image.Point {
	half := float64(side) / 2
	return image.Pt(int(float64(g.AvatarCenterX)-half), int(float64(g.AvatarCenterY)-half))
}

// Layers are the inputs of ComposeBadge. Code may be nil.
type Layers struct {
	Background color.Color
	Avatar     image.Image
	Template   image.Image
	Code       image.Image
	CodeBox    image.Rectangle
}

// ComposeBadge builds the canvas bottom-up: background fill, avatar, template
// overlay, then the code patch. Later layers cover earlier ones through their
// alpha channel. The result is flattened onto white, so it is always opaque.
func ComposeBadge(geo TemplateGeometry, l Layers) *image.NRGBA {
	canvas := imaging.New(geo.CanvasWidth, geo.CanvasHeight, l.Background)

	if l.Avatar != nil {
		side := l.Avatar.Bounds().Dx()
		canvas = imaging.Paste(canvas, l.Avatar, geo.AvatarOffset(side))
	}

	if l.Template != nil {
		canvas = imaging.Overlay(canvas, l.Template, image.Pt(0, 0), 1.0)
	}

	if l.Code != nil && !l.CodeBox.Empty() {
		q := imaging.Resize(l.Code, l.CodeBox.Dx(), l.CodeBox.Dy(), imaging.NearestNeighbor)
		canvas = imaging.Overlay(canvas, q, l.CodeBox.Min, 1.0)
	}

	return imaging.Overlay(imaging.New(geo.CanvasWidth, geo.CanvasHeight, color.White), canvas, image.Pt(0, 0), 1.0)
}

// WithAlpha returns a copy of img whose alpha channel is replaced by a. It is
// used to preview avatar placement under a translucent template.
func WithAlpha(img image.Image, a uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = a
		return c
	})
}

// EnsureAlpha returns img as NRGBA so later compositing can rely on an alpha
// channel.
func EnsureAlpha(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
