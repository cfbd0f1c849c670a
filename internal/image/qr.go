package imagepkg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"unicode"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GenerateQRPNG returns PNG bytes of a QR code for the given text.
func GenerateQRPNG(text string, size int) ([]byte, error) {
	pngBytes, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	// validate png decode
	_, err = png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, err
	}
	return pngBytes, nil
}

// QRStyle controls how a code patch is drawn.
type QRStyle struct {
	Fill       color.Color
	Back       color.Color
	ModuleSize int // pixels per module
	Border     int // quiet zone, in modules
	Version    int // 0 picks the smallest version that fits
}

// DefaultQRStyle matches the stock badge template.
var DefaultQRStyle = QRStyle{
	Fill:       color.Black,
	Back:       color.White,
	ModuleSize: 10,
	Border:     4,
}

// GenerateQRImage renders text as a QR code in the given style, using low
// error correction.
func GenerateQRImage(text string, style QRStyle) (image.Image, error) {
	q, err := newQR(text, style.Version)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	module := style.ModuleSize
	if module <= 0 {
		module = DefaultQRStyle.ModuleSize
	}
	border := max(style.Border, 0)
	fill, back := style.Fill, style.Back
	if fill == nil {
		fill = DefaultQRStyle.Fill
	}
	if back == nil {
		back = DefaultQRStyle.Back
	}

	side := (len(bitmap) + 2*border) * module
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.NewUniform(back), image.Point{}, draw.Src)
	ink := image.NewUniform(fill)
	for y, row := range bitmap {
		for x, on := range row {
			if !on {
				continue
			}
			x0, y0 := (x+border)*module, (y+border)*module
			draw.Draw(img, image.Rect(x0, y0, x0+module, y0+module), ink, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

func newQR(text string, version int) (*qrcode.QRCode, error) {
	if version > 0 {
		if q, err := qrcode.NewWithForcedVersion(text, version, qrcode.Low); err == nil {
			return q, nil
		}
	}
	q, err := qrcode.New(text, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return q, nil
}

// QRGenerator produces code patches with a fixed style.
type QRGenerator struct {
	Style QRStyle
}

// Generate renders payload with the generator's style.
func (g QRGenerator) Generate(payload string) (image.Image, error) {
	return GenerateQRImage(payload, g.Style)
}

func asciiOnly() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
}

// Transliterate decomposes s and drops whatever is left outside ASCII, so
// "Nguyễn" becomes "Nguyen".
func Transliterate(s string) string {
	out, _, err := transform.String(asciiOnly(), s)
	if err != nil {
		return s
	}
	return out
}

// QRPayload is the text embedded in a badge's code patch.
func QRPayload(name, role, id, company string) string {
	return fmt.Sprintf("Fullname: %s, Position: %s, Badge_Id: %s, Company: %s",
		Transliterate(name), Transliterate(role), Transliterate(id), company)
}
