package app

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.png")
	if err := imaging.Save(imaging.New(640, 1000, color.NRGBA{0, 0, 0, 0}), tpl); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BADGE_TEMPLATE", tpl)
	t.Setenv("BADGE_OUTPUT_DIR", filepath.Join(dir, "out"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	c, err := Build(testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	l := c.Pipeline.Layout()
	if l.Geometry.CanvasWidth != 640 || l.Geometry.CanvasHeight != 1000 {
		t.Fatalf("canvas not taken from template: %+v", l.Geometry)
	}
	if c.Runner == nil || c.Downloader == nil {
		t.Fatalf("container incomplete")
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(nil, zap.NewNop()); err == nil {
		t.Fatalf("nil config accepted")
	}

	cfg := testConfig(t)
	cfg.Paths.Template = filepath.Join(t.TempDir(), "missing.png")
	if _, err := Build(cfg, zap.NewNop()); err == nil {
		t.Fatalf("missing template accepted")
	}

	cfg = testConfig(t)
	cfg.Paths.Cascade = filepath.Join(t.TempDir(), "facefinder")
	if _, err := Build(cfg, zap.NewNop()); err == nil {
		t.Fatalf("missing cascade accepted")
	}
}
