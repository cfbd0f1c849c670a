package badge

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/identity"
	imagepkg "github.com/youruser/badgeapp/internal/image"
	"github.com/youruser/badgeapp/internal/util"
)

// CodeGenerator renders the scannable code for a payload.
type CodeGenerator interface {
	Generate(payload string) (image.Image, error)
}

// Badge is a composed badge held in memory.
type Badge struct {
	Image    *image.NRGBA
	Name     string
	Employee identity.Employee
	Focus    imagepkg.Point
	Window   imagepkg.CropWindow
	Warnings []Kind
}

// Result describes one processed source photo.
type Result struct {
	Source   string
	Output   string
	Employee identity.Employee
	Stage    Stage
	Elapsed  time.Duration
	Warnings []Kind
}

// Pipeline turns one source photo into one badge. All of its fields are
// read-only after New, so a single Pipeline may serve any number of
// goroutines.
type Pipeline struct {
	layout   Layout
	template *image.NRGBA
	fonts    *imagepkg.FontSet
	detector imagepkg.Detector
	codes    CodeGenerator
	logger   *zap.Logger
}

// New validates layout and prepares the template. The canvas size is taken
// from the template. detector and codes may be nil.
func New(layout Layout, template image.Image, fonts *imagepkg.FontSet, detector imagepkg.Detector, codes CodeGenerator, logger *zap.Logger) (*Pipeline, error) {
	if template == nil {
		return nil, fmt.Errorf("template image is required")
	}
	if fonts == nil {
		return nil, fmt.Errorf("font set is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	layout = layout.clone()

	tpl := imagepkg.EnsureAlpha(template)
	if layout.PreviewTemplateAlpha > 0 {
		tpl = imagepkg.WithAlpha(tpl, layout.PreviewTemplateAlpha)
	}
	layout.Geometry.CanvasWidth = tpl.Bounds().Dx()
	layout.Geometry.CanvasHeight = tpl.Bounds().Dy()

	if err := layout.Validate(); err != nil {
		return nil, err
	}
	for _, f := range layout.fields() {
		if err := fonts.Load(builtinOr(f.Font)); err != nil {
			return nil, fmt.Errorf("%s font: %w", f.Name, err)
		}
	}

	return &Pipeline{
		layout:   layout,
		template: tpl,
		fonts:    fonts,
		detector: detector,
		codes:    codes,
		logger:   logger,
	}, nil
}

func builtinOr(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "builtin:") {
		return ""
	}
	return ref
}

// Layout returns a copy of the effective layout.
func (p *Pipeline) Layout() Layout {
	return p.layout.clone()
}

// OutputPath is where a badge with the given name is written.
func (p *Pipeline) OutputPath(name string) string {
	return filepath.Join(p.layout.OutputDir, name)
}

// Process reads srcPath, composes its badge and writes exactly one PNG into
// the output directory. Any failure is logged once and returned as *Error;
// no file is written in that case.
func (p *Pipeline) Process(srcPath string) (*Result, error) {
	start := time.Now()
	source := filepath.Base(srcPath)

	res, err := p.process(srcPath, source)
	if err != nil {
		be := asError(err, source)
		p.logger.Error("Badge failed",
			zap.String("source", source),
			zap.String("kind", string(be.Kind)),
			zap.String("stage", be.Stage.String()),
			zap.Error(be))
		return nil, be
	}
	res.Elapsed = time.Since(start)
	p.logger.Info("Badge generated",
		zap.String("source", source),
		zap.String("output", res.Output),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (p *Pipeline) process(srcPath, source string) (*Result, error) {
	emp, err := identity.ParseFilename(source, p.layout.Roles)
	if err != nil {
		return nil, newError(KindOf(err), StageNew, source, "", err)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, newError(KindAssetReadFailure, StageNew, source, "read source", err)
	}
	img, orientation, orientErr, err := imagepkg.DecodeSource(data)
	if err != nil {
		return nil, newError(KindAssetReadFailure, StageNew, source, "decode source", err)
	}
	imagepkg.LogOrientationError(p.logger, source, orientErr)

	b, err := p.compose(source, emp, img, orientation)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, b.Image, imaging.PNG); err != nil {
		return nil, newError(KindAssetWriteFailure, StageTextRendered, source, "encode badge", err)
	}
	out := p.OutputPath(b.Name)
	if err := util.WriteFileAtomic(out, buf.Bytes()); err != nil {
		return nil, newError(KindAssetWriteFailure, StageTextRendered, source, "write badge", err)
	}

	return &Result{
		Source:   source,
		Output:   out,
		Employee: emp,
		Stage:    StageSaved,
		Warnings: b.Warnings,
	}, nil
}

// Compose builds a badge in memory from an already decoded photo. filename
// supplies the identity; orientation is the photo's EXIF orientation tag.
func (p *Pipeline) Compose(filename string, src image.Image, orientation int) (*Badge, error) {
	source := filepath.Base(filename)
	emp, err := identity.ParseFilename(source, p.layout.Roles)
	if err != nil {
		return nil, newError(KindOf(err), StageNew, source, "", err)
	}
	if src == nil {
		return nil, newError(KindAssetReadFailure, StageNew, source, "no source image", nil)
	}
	return p.compose(source, emp, src, orientation)
}

func (p *Pipeline) compose(source string, emp identity.Employee, src image.Image, orientation int) (*Badge, error) {
	geo := p.layout.Geometry
	side := geo.CropSide()
	st := &tracker{stage: StageNew}
	st.advance(StageLoaded)

	img := imagepkg.Orient(src, orientation)
	st.advance(StageOrientationFixed)

	if !p.layout.AllowUpscale {
		b := img.Bounds()
		if err := imagepkg.CheckSize(b.Dx(), b.Dy(), side); err != nil {
			return nil, newError(KindImageTooSmall, st.stage, source, "source narrower than crop side", err)
		}
	}
	resized := imagepkg.ResizeToBase(img, side)
	st.advance(StageResized)
	p.logger.Debug("Resized",
		zap.String("source", source),
		zap.Int("width", resized.Bounds().Dx()),
		zap.Int("height", resized.Bounds().Dy()))

	focus := imagepkg.ResolveFocus(p.detect(source, resized))
	st.advance(StageFocusResolved)

	avatar, win, err := imagepkg.CropAround(resized, focus, side)
	if err != nil {
		return nil, newError(KindOf(err), st.stage, source, "crop", err)
	}
	st.advance(StageCropped)
	p.logger.Debug("Cropped",
		zap.String("source", source),
		zap.Int("focus_x", focus.X),
		zap.Int("focus_y", focus.Y),
		zap.Any("window", win))
	p.saveDebugCrop(source, avatar)

	var warnings []Kind
	code, err := p.codePatch(emp)
	if err != nil {
		warnings = append(warnings, KindCodePatchUnavailable)
		p.logger.Warn("Code patch unavailable, composing without it",
			zap.String("source", source),
			zap.String("kind", string(KindCodePatchUnavailable)),
			zap.Error(err))
	}
	canvas := imagepkg.ComposeBadge(geo, imagepkg.Layers{
		Background: p.layout.Background,
		Avatar:     avatar,
		Template:   p.template,
		Code:       code,
		CodeBox:    p.layout.QR.Box,
	})
	st.advance(StageComposited)

	offset := geo.AvatarOffset(side)
	lines := []imagepkg.TextLine{
		{Field: p.layout.Name, Text: strings.ToUpper(strings.TrimSpace(emp.FullName))},
		{Field: p.layout.Role, Text: emp.RoleDisplay},
		{Field: p.layout.Identifier, Text: IDPrefix + strings.TrimSpace(emp.Identifier)},
	}
	opts := imagepkg.TextOptions{AutoSize: p.layout.AutoSize, AutoBase: p.layout.TextSize}
	if _, err := p.fonts.DrawLines(canvas, lines, geo.AvatarCenterY+offset.Y, opts); err != nil {
		return nil, newError(KindOf(err), st.stage, source, "render text", err)
	}
	st.advance(StageTextRendered)

	return &Badge{
		Image:    canvas,
		Name:     identity.OutputName(p.layout.Prefix, emp),
		Employee: emp,
		Focus:    focus,
		Window:   win,
		Warnings: warnings,
	}, nil
}

func (p *Pipeline) detect(source string, img image.Image) []imagepkg.Box {
	if p.detector == nil {
		return nil
	}
	boxes, err := p.detector.Detect(imagepkg.ToGray(img), p.layout.ScaleFactor)
	if err != nil {
		p.logger.Warn("Face detection failed, using image centre", zap.String("source", source), zap.Error(err))
		return nil
	}
	p.logger.Info("Faces detected", zap.String("source", source), zap.Int("count", len(boxes)))
	return boxes
}

func (p *Pipeline) codePatch(emp identity.Employee) (image.Image, error) {
	qr := p.layout.QR
	if !qr.Enabled {
		return nil, nil
	}
	if p.codes == nil {
		return nil, fmt.Errorf("no code generator configured")
	}
	payload := qr.Text
	if payload == "" {
		payload = imagepkg.QRPayload(emp.FullName, emp.RoleDisplay, emp.Identifier, qr.Company)
	}
	return p.codes.Generate(payload)
}

func (p *Pipeline) saveDebugCrop(source string, avatar image.Image) {
	if p.layout.DebugDir == "" {
		return
	}
	// keyed by source so concurrent runs never share a file
	path := filepath.Join(p.layout.DebugDir, "cr_"+identity.Stem(source)+".png")
	err := util.EnsureDir(p.layout.DebugDir)
	if err == nil {
		err = imaging.Save(avatar, path)
	}
	if err != nil {
		p.logger.Warn("Debug crop not saved", zap.String("path", path), zap.Error(err))
	}
}

func asError(err error, source string) *Error {
	if be, ok := err.(*Error); ok {
		return be
	}
	return newError(KindOf(err), StageNew, source, "", err)
}
