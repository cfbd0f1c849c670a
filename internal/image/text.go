package imagepkg

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// TextMargin is the horizontal room a line must leave free.
	TextMargin = 50
	// FontStep is the shrink applied per auto-fit attempt.
	FontStep = 5
)

// Built-in font references, used when a field names no font file.
const (
	FontRegular = "builtin:regular"
	FontBold    = "builtin:bold"
)

// ErrTextTooLarge is returned when no positive font size fits the canvas.
var ErrTextTooLarge = errors.New("text does not fit")

// TextField describes how one badge line is drawn.
type TextField struct {
	Name          string      `json:"name"`
	TopPad        int         `json:"top_pad"`
	BaseSize      int         `json:"base_size"`
	SizeReduction int         `json:"size_reduction"`
	Color         color.NRGBA `json:"color"`
	Font          string      `json:"font"`
}

// FontSet holds parsed fonts keyed by reference. It is read-only once built
// and safe to share; faces are created per call.
type FontSet struct {
	mu    sync.RWMutex
	fonts map[string]*opentype.Font
}

// NewFontSet parses the built-in Go fonts plus every file in paths.
func NewFontSet(paths ...string) (*FontSet, error) {
	fs := &FontSet{fonts: map[string]*opentype.Font{}}
	for ref, data := range map[string][]byte{FontRegular: goregular.TTF, FontBold: gobold.TTF} {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", ref, err)
		}
		fs.fonts[ref] = f
	}
	for _, p := range paths {
		if err := fs.Load(p); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// Load parses a TTF/OTF file and registers it under its path.
func (fs *FontSet) Load(path string) error {
	if path == "" || fs.has(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	fs.mu.Lock()
	fs.fonts[path] = f
	fs.mu.Unlock()
	return nil
}

func (fs *FontSet) has(ref string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.fonts[ref]
	return ok
}

// Face opens ref at size pixels. The caller closes it.
func (fs *FontSet) Face(ref string, size int) (font.Face, error) {
	if ref == "" {
		ref = FontRegular
	}
	fs.mu.RLock()
	f, ok := fs.fonts[ref]
	fs.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("font %q not loaded", ref)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Measure returns the ink width and height of s at size.
func (fs *FontSet) Measure(ref, s string, size int) (int, int, error) {
	face, err := fs.Face(ref, size)
	if err != nil {
		return 0, 0, err
	}
	defer face.Close()
	b, _ := font.BoundString(face, s)
	return (b.Max.X - b.Min.X).Ceil(), (b.Max.Y - b.Min.Y).Ceil(), nil
}

// FitText shrinks from start by FontStep until s is narrower than maxWidth.
// It fails with ErrTextTooLarge once the size would drop to zero.
func (fs *FontSet) FitText(ref, s string, start, maxWidth int) (int, error) {
	for size := start; size > 0; size -= FontStep {
		w, _, err := fs.Measure(ref, s, size)
		if err != nil {
			return 0, err
		}
		if w < maxWidth {
			return size, nil
		}
	}
	return 0, fmt.Errorf("%w: %q within %dpx starting at size %d", ErrTextTooLarge, s, maxWidth, start)
}

// TextLine is one field's text together with its style.
type TextLine struct {
	Field TextField
	Text  string
}

// TextOptions select the starting font size of each line.
type TextOptions struct {
	AutoSize bool
	AutoBase int
}

func (o TextOptions) startSize(f TextField) int {
	if o.AutoSize {
		return o.AutoBase - f.SizeReduction
	}
	return f.BaseSize
}

// DrawLines draws each line horizontally centred on canvas, advancing a
// vertical cursor from startY by each line's top pad and measured height.
// startY is clamped into [0, height-TextMargin]. It returns the final cursor.
func (fs *FontSet) DrawLines(canvas *image.NRGBA, lines []TextLine, startY int, opt TextOptions) (int, error) {
	width, height := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	y := max(0, min(startY, height-TextMargin))

	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		y += line.Field.TopPad

		size, err := fs.FitText(line.Field.Font, text, opt.startSize(line.Field), width-TextMargin)
		if err != nil {
			return y, fmt.Errorf("%s: %w", line.Field.Name, err)
		}
		th, err := fs.drawCentered(canvas, line.Field, text, size, y)
		if err != nil {
			return y, fmt.Errorf("%s: %w", line.Field.Name, err)
		}
		y += th
	}
	return y, nil
}

func (fs *FontSet) drawCentered(canvas *image.NRGBA, f TextField, text string, size, y int) (int, error) {
	face, err := fs.Face(f.Font, size)
	if err != nil {
		return 0, err
	}
	defer face.Close()

	b, _ := font.BoundString(face, text)
	tw := (b.Max.X - b.Min.X).Ceil()
	th := (b.Max.Y - b.Min.Y).Ceil()
	x := (canvas.Bounds().Dx() - tw) / 2

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(f.Color),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x) - b.Min.X,
			Y: fixed.I(y) + face.Metrics().Ascent,
		},
	}
	d.DrawString(text)
	return th, nil
}
