package badge

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/detect"
	"github.com/youruser/badgeapp/internal/identity"
	imagepkg "github.com/youruser/badgeapp/internal/image"
)

var black = color.NRGBA{0, 0, 0, 255}

func testLayout(outDir string) Layout {
	return Layout{
		Version: "test",
		Prefix:  "PREFIX",
		Geometry: imagepkg.TemplateGeometry{
			AvatarCenterX: 150,
			AvatarCenterY: 120,
			AvatarWidth:   180,
			AvatarHeight:  180,
			AvatarPadding: 20,
		},
		Background: color.NRGBA{255, 255, 255, 255},
		Name:       imagepkg.TextField{Name: "name", TopPad: 10, BaseSize: 30, Color: black, Font: imagepkg.FontBold},
		Role:       imagepkg.TextField{Name: "role", TopPad: 5, BaseSize: 24, SizeReduction: RoleReduction, Color: black},
		Identifier: imagepkg.TextField{Name: "identifier", TopPad: 5, BaseSize: 20, SizeReduction: IdentifierReduction, Color: black},
		AutoSize:   true,
		TextSize:   36,
		QR: QRLayout{
			Enabled: true,
			Company: "https://example.com",
			Style:   imagepkg.QRStyle{ModuleSize: 2, Border: 1},
			Box:     image.Rect(230, 320, 290, 380),
		},
		ScaleFactor: 1.1,
		OutputDir:   outDir,
		Roles:       identity.RoleTable{"SE": "Senior Engineer", "E": "Engineer"},
	}
}

// template with a transparent avatar window and an opaque frame elsewhere
func testTemplate(w, h int) *image.NRGBA {
	tpl := imaging.New(w, h, color.NRGBA{0, 60, 120, 255})
	for y := 20; y < 220 && y < h; y++ {
		for x := 50; x < 250 && x < w; x++ {
			tpl.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 0})
		}
	}
	return tpl
}

func writePhoto(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{200, 150, 100, 255})
	p := filepath.Join(dir, name)
	if err := imaging.Save(img, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func newPipeline(t *testing.T, layout Layout, tpl image.Image, det imagepkg.Detector, codes CodeGenerator) *Pipeline {
	t.Helper()
	fonts, err := imagepkg.NewFontSet()
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(layout, tpl, fonts, det, codes, zap.NewNop())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

type failingCodes struct{}

func (failingCodes) Generate(string) (image.Image, error) {
	return nil, errors.New("encoder offline")
}

func TestProcessScenarioA(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	p := newPipeline(t, testLayout(out), testTemplate(300, 400), detect.None{}, imagepkg.QRGenerator{Style: imagepkg.DefaultQRStyle})

	res, err := p.Process(writePhoto(t, src, "Nguyen Van A_001_SE_1.png", 400, 600))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := identity.Employee{FullName: "Nguyen Van A", Identifier: "001", RoleCode: "SE", RoleDisplay: "Senior Engineer", Sequence: "1"}
	if res.Employee != want {
		t.Fatalf("employee %+v", res.Employee)
	}
	if filepath.Base(res.Output) != "PREFIX-NGUYEN VAN A_SENIOR ENGINEER_001_1.png" {
		t.Fatalf("output %q", res.Output)
	}
	if res.Stage != StageSaved || len(res.Warnings) != 0 {
		t.Fatalf("stage %s warnings %v", res.Stage, res.Warnings)
	}
	img, err := imaging.Open(res.Output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 400 {
		t.Fatalf("canvas %v", img.Bounds())
	}
	// avatar shows through the template window
	c := color.NRGBAModel.Convert(img.At(150, 60)).(color.NRGBA)
	if absDiff(c.R, 200) > 2 || absDiff(c.G, 150) > 2 || absDiff(c.B, 100) > 2 {
		t.Fatalf("avatar pixel %v", c)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one output file, got %d", len(entries))
	}
}

func TestProcessScenarioBUnknownRole(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	p := newPipeline(t, testLayout(out), testTemplate(300, 400), nil, nil)

	_, err := p.Process(writePhoto(t, src, "X_999_ZZ_1.png", 400, 600))
	if KindOf(err) != KindUnknownRole {
		t.Fatalf("expected UnknownRole, got %v", err)
	}
	if !errors.Is(err, &Error{Kind: KindUnknownRole}) {
		t.Fatalf("errors.Is by kind failed")
	}
	var pe *identity.ParseError
	if !errors.As(err, &pe) || pe.Value != "ZZ" {
		t.Fatalf("cause not preserved: %v", err)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Fatalf("no output expected, found %d files", len(entries))
	}
}

func TestProcessScenarioCImageTooSmall(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	layout := testLayout(out)
	layout.Geometry.AvatarWidth, layout.Geometry.AvatarPadding = 200, 0
	p := newPipeline(t, layout, testTemplate(300, 400), nil, nil)

	_, err := p.Process(writePhoto(t, src, "Small_002_E.png", 50, 50))
	if KindOf(err) != KindImageTooSmall {
		t.Fatalf("expected ImageTooSmall, got %v", err)
	}
	var be *Error
	if !errors.As(err, &be) || !be.Stage.Before(StageCropped) {
		t.Fatalf("unexpected stage: %v", err)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Fatalf("no output expected")
	}
}

func TestComposeUpscaleAllowed(t *testing.T) {
	layout := testLayout(t.TempDir())
	layout.AllowUpscale = true
	p := newPipeline(t, layout, testTemplate(300, 400), nil, nil)

	b, err := p.Compose("Small_002_E.png", imaging.New(50, 50, color.White), 0)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if b.Window != (imagepkg.CropWindow{Left: 0, Top: 0, Right: 200, Bottom: 200}) {
		t.Fatalf("window %+v", b.Window)
	}
}

func TestComposeSquarePhotoFillsCropSide(t *testing.T) {
	layout := testLayout(t.TempDir())
	layout.Geometry.AvatarWidth, layout.Geometry.AvatarPadding = 100, 0
	p := newPipeline(t, layout, testTemplate(300, 400), nil, nil)
	for _, side := range []int{161, 596, 601, 611} {
		b, err := p.Compose("A_1_E.png", imaging.New(side, side, color.White), 0)
		if err != nil {
			t.Fatalf("%dx%d: %v", side, side, err)
		}
		if b.Window != (imagepkg.CropWindow{Left: 0, Top: 0, Right: 100, Bottom: 100}) {
			t.Fatalf("%dx%d: window %+v", side, side, b.Window)
		}
	}
}

func TestComposeZeroFacesRecentres(t *testing.T) {
	p := newPipeline(t, testLayout(t.TempDir()), testTemplate(300, 400), detect.None{}, nil)
	// 400x600 resizes to 200x300 for a crop side of 200
	b, err := p.Compose("A_1_E.png", imaging.New(400, 600, color.White), 0)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !b.Focus.IsZero() {
		t.Fatalf("focus %v", b.Focus)
	}
	if b.Window != (imagepkg.CropWindow{Left: 0, Top: 50, Right: 200, Bottom: 250}) {
		t.Fatalf("window %+v", b.Window)
	}
}

func TestComposeUsesDetectedFocus(t *testing.T) {
	// boxes are in resized (200x300) coordinates
	det := detect.Static{{X: 80, Y: 230, W: 40, H: 40}}
	p := newPipeline(t, testLayout(t.TempDir()), testTemplate(300, 400), det, nil)
	b, err := p.Compose("A_1_E.png", imaging.New(400, 600, color.White), 0)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if b.Focus != (imagepkg.Point{X: 100, Y: 250}) {
		t.Fatalf("focus %v", b.Focus)
	}
	// y pinned to the bottom edge
	if b.Window != (imagepkg.CropWindow{Left: 0, Top: 100, Right: 200, Bottom: 300}) {
		t.Fatalf("window %+v", b.Window)
	}
}

func TestComposeOrientationRotates(t *testing.T) {
	p := newPipeline(t, testLayout(t.TempDir()), testTemplate(300, 400), nil, nil)
	// 600x400 landscape tagged as rotated 90 becomes 400x600 portrait
	b, err := p.Compose("A_1_E.png", imaging.New(600, 400, color.White), imagepkg.OrientationRotate270)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if b.Window.Bottom-b.Window.Top != 200 || b.Window.Top != 50 {
		t.Fatalf("window %+v", b.Window)
	}
}

func TestComposeCodePatchFailureIsWarning(t *testing.T) {
	p := newPipeline(t, testLayout(t.TempDir()), testTemplate(300, 400), nil, failingCodes{})
	b, err := p.Compose("A_1_E.png", imaging.New(300, 300, color.White), 0)
	if err != nil {
		t.Fatalf("compose should survive code failure: %v", err)
	}
	if len(b.Warnings) != 1 || b.Warnings[0] != KindCodePatchUnavailable {
		t.Fatalf("warnings %v", b.Warnings)
	}
	if KindCodePatchUnavailable.Fatal() {
		t.Fatalf("code patch kind must not be fatal")
	}
}

func TestComposeTextTooLarge(t *testing.T) {
	layout := testLayout(t.TempDir())
	layout.QR.Enabled = false
	p := newPipeline(t, layout, testTemplate(imagepkg.TextMargin, 400), nil, nil)
	_, err := p.Compose("A_1_E.png", imaging.New(300, 300, color.White), 0)
	if KindOf(err) != KindTextTooLarge {
		t.Fatalf("expected TextTooLarge, got %v", err)
	}
	var be *Error
	if !errors.As(err, &be) || be.Stage != StageComposited {
		t.Fatalf("stage: %v", err)
	}
}

func TestProcessMissingSource(t *testing.T) {
	p := newPipeline(t, testLayout(t.TempDir()), testTemplate(300, 400), nil, nil)
	_, err := p.Process(filepath.Join(t.TempDir(), "A_1_E.png"))
	if KindOf(err) != KindAssetReadFailure {
		t.Fatalf("expected AssetReadFailure, got %v", err)
	}
}

func TestProcessWritesDebugCrop(t *testing.T) {
	src, out, dbg := t.TempDir(), t.TempDir(), t.TempDir()
	layout := testLayout(out)
	layout.DebugDir = dbg
	p := newPipeline(t, layout, testTemplate(300, 400), nil, nil)
	if _, err := p.Process(writePhoto(t, src, "A_1_E_4.png", 300, 300)); err != nil {
		t.Fatalf("process: %v", err)
	}
	img, err := imaging.Open(filepath.Join(dbg, "cr_A_1_E_4.png"))
	if err != nil {
		t.Fatalf("debug crop: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 200 {
		t.Fatalf("debug crop size %v", img.Bounds())
	}
}

func TestProcessConcurrent(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	p := newPipeline(t, testLayout(out), testTemplate(300, 400), detect.None{}, imagepkg.QRGenerator{Style: imagepkg.DefaultQRStyle})

	var paths []string
	for i := 0; i < 8; i++ {
		paths = append(paths, writePhoto(t, src, fmt.Sprintf("Person %d_%03d_E_1.png", i, i), 300+i*10, 400))
	}
	paths = append(paths, writePhoto(t, src, "Bad_1_QQ.png", 300, 300))

	var wg sync.WaitGroup
	errs := make([]error, len(paths))
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			_, errs[i] = p.Process(path)
		}(i, path)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if errs[i] != nil {
			t.Fatalf("%s: %v", paths[i], errs[i])
		}
	}
	if KindOf(errs[8]) != KindUnknownRole {
		t.Fatalf("bad file: %v", errs[8])
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 8 {
		t.Fatalf("expected 8 badges, got %d", len(entries))
	}
}

func TestNewRejectsInvalidLayout(t *testing.T) {
	fonts, _ := imagepkg.NewFontSet()
	layout := testLayout(t.TempDir())
	layout.Roles = nil
	if _, err := New(layout, testTemplate(10, 10), fonts, nil, nil, nil); err == nil {
		t.Fatalf("expected error for empty roles")
	}
	if _, err := New(testLayout(""), nil, fonts, nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
}

func TestStageOrder(t *testing.T) {
	if !StageLoaded.Before(StageSaved) || StageSaved.Before(StageCropped) {
		t.Fatalf("stage order broken")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("moving backwards should panic")
		}
	}()
	tr := &tracker{stage: StageCropped}
	tr.advance(StageResized)
}
