package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	imagepkg "github.com/youruser/badgeapp/internal/image"
)

// Options tune the pigo cascade run.
type Options struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

// DefaultOptions follow the pigo examples, with MaxSize left to the image.
var DefaultOptions = Options{
	MinSize:      30,
	ShiftFactor:  0.1,
	IoUThreshold: 0.2,
	MinQuality:   5.0,
}

// Pigo detects frontal faces with a pigo cascade. It is safe for concurrent
// use once built.
type Pigo struct {
	classifier *pigo.Pigo
	opts       Options
}

// NewPigo unpacks the cascade file at path (e.g. "facefinder").
func NewPigo(path string, opts Options) (*Pigo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	return NewPigoFromBytes(data, opts)
}

// NewPigoFromBytes builds a detector from an already loaded cascade.
func NewPigoFromBytes(cascade []byte, opts Options) (*Pigo, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &Pigo{classifier: classifier, opts: opts}, nil
}

// Detect returns one square box per clustered detection above MinQuality, in
// the order pigo reports them.
func (p *Pigo) Detect(gray *image.Gray, scaleFactor float64) ([]imagepkg.Box, error) {
	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}
	maxSize := p.opts.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}
	if scaleFactor <= 1 {
		scaleFactor = 1.1
	}

	params := pigo.CascadeParams{
		MinSize:     p.opts.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: p.opts.ShiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}
	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.opts.IoUThreshold)

	boxes := make([]imagepkg.Box, 0, len(dets))
	for _, d := range dets {
		if d.Q < p.opts.MinQuality {
			continue
		}
		boxes = append(boxes, imagepkg.Box{
			X: max(d.Col-d.Scale/2, 0),
			Y: max(d.Row-d.Scale/2, 0),
			W: d.Scale,
			H: d.Scale,
		})
	}
	return boxes, nil
}

// None never finds anything, which makes every crop fall back to the image
// centre.
type None struct{}

func (None) Detect(*image.Gray, float64) ([]imagepkg.Box, error) { return nil, nil }

// Static returns fixed boxes. Useful for tests and for callers that already
// know where the face is.
type Static []imagepkg.Box

func (s Static) Detect(*image.Gray, float64) ([]imagepkg.Box, error) {
	return append([]imagepkg.Box(nil), s...), nil
}
