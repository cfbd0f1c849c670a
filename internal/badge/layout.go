package badge

import (
	"fmt"
	"image"
	"image/color"

	"github.com/youruser/badgeapp/internal/identity"
	imagepkg "github.com/youruser/badgeapp/internal/image"
)

// Text size reductions applied to the shared auto size, per field.
const (
	NameReduction       = 0
	RoleReduction       = 10
	IdentifierReduction = 15
)

// IDPrefix is prepended to the identifier line.
const IDPrefix = "ID: "

// QRLayout places the scannable code on the badge.
type QRLayout struct {
	Enabled bool
	// Text replaces the generated payload when set.
	Text    string
	Company string
	Style   imagepkg.QRStyle
	Box     image.Rectangle
}

// Layout is everything the pipeline needs besides the template image. It is
// copied into the pipeline and never modified there.
type Layout struct {
	Version    string
	Prefix     string
	Geometry   imagepkg.TemplateGeometry
	Background color.NRGBA

	Name       imagepkg.TextField
	Role       imagepkg.TextField
	Identifier imagepkg.TextField
	AutoSize   bool
	TextSize   int

	QR          QRLayout
	ScaleFactor float64

	// AllowUpscale lets photos narrower than the crop side be enlarged to it.
	// When false they fail with ImageTooSmall.
	AllowUpscale bool
	// PreviewTemplateAlpha, when non-zero, replaces the template's alpha so the
	// avatar placement can be inspected.
	PreviewTemplateAlpha uint8

	OutputDir string
	// DebugDir receives the cropped avatar of every image when set.
	DebugDir string

	Roles identity.RoleTable
}

func (l Layout) Validate() error {
	if l.Prefix == "" {
		return fmt.Errorf("layout: prefix is required")
	}
	if l.Geometry.CropSide() <= 0 {
		return fmt.Errorf("layout: avatar width + padding must be positive, got %d", l.Geometry.CropSide())
	}
	if len(l.Roles) == 0 {
		return fmt.Errorf("layout: role table is empty")
	}
	if l.AutoSize && l.TextSize <= 0 {
		return fmt.Errorf("layout: text size must be positive, got %d", l.TextSize)
	}
	if !l.AutoSize {
		for _, f := range l.fields() {
			if f.BaseSize <= 0 {
				return fmt.Errorf("layout: %s size must be positive, got %d", f.Name, f.BaseSize)
			}
		}
	}
	if l.QR.Enabled && l.QR.Box.Empty() {
		return fmt.Errorf("layout: qr box is empty")
	}
	return nil
}

func (l Layout) fields() []imagepkg.TextField {
	return []imagepkg.TextField{l.Name, l.Role, l.Identifier}
}

func (l Layout) clone() Layout {
	c := l
	c.Roles = make(identity.RoleTable, len(l.Roles))
	for k, v := range l.Roles {
		c.Roles[k] = v
	}
	return c
}
