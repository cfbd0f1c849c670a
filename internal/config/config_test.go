package config

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/youruser/badgeapp/internal/badge"
	"github.com/youruser/badgeapp/internal/identity"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Badge.Prefix != "TMA" || cfg.Batch.Workers != 4 || cfg.Batch.Interval != time.Minute {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Badge, cfg.Batch)
	}
	if len(cfg.Roles) != len(identity.DefaultRoles()) {
		t.Fatalf("expected built-in roles, got %v", cfg.Roles)
	}
	if len(cfg.Paths.Extensions) != 5 {
		t.Fatalf("extensions %v", cfg.Paths.Extensions)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BADGE_PREFIX", "ACME")
	t.Setenv("BADGE_AUTO_SIZE", "false")
	t.Setenv("BADGE_ROLE_SIZE", "33")
	t.Setenv("BADGE_NAME_COLOR", "#ff000080")
	t.Setenv("BADGE_QR_X", "10")
	t.Setenv("BADGE_QR_Y", "20")
	t.Setenv("BADGE_QR_W", "30")
	t.Setenv("BADGE_QR_H", "40")
	t.Setenv("BADGE_PREVIEW_ALPHA", "125")
	t.Setenv("BADGE_ROLES", "QA=Quality Analyst, SE=Senior Engineer")
	t.Setenv("BADGE_WORKERS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l := cfg.Layout()
	if l.Prefix != "ACME" || l.AutoSize || l.Role.BaseSize != 33 || l.Role.SizeReduction != badge.RoleReduction {
		t.Fatalf("layout fields: %+v", l)
	}
	if l.Name.Color != (color.NRGBA{255, 0, 0, 128}) {
		t.Fatalf("name color %v", l.Name.Color)
	}
	if l.QR.Box != image.Rect(10, 20, 40, 60) {
		t.Fatalf("qr box %v", l.QR.Box)
	}
	if l.PreviewTemplateAlpha != 125 {
		t.Fatalf("preview alpha %d", l.PreviewTemplateAlpha)
	}
	if _, display, ok := l.Roles.Resolve("qa"); !ok || display != "Quality Analyst" {
		t.Fatalf("roles %v", l.Roles)
	}
	if _, _, ok := l.Roles.Resolve("PM"); ok {
		t.Fatalf("BADGE_ROLES should replace the built-in table")
	}
	// unparsable values fall back to the default
	if cfg.Batch.Workers != 4 {
		t.Fatalf("workers %d", cfg.Batch.Workers)
	}
}

func TestLoadRolesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.csv")
	if err := os.WriteFile(path, []byte("code,display\nDEV,Developer\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BADGE_ROLES_FILE", path)
	t.Setenv("BADGE_ROLES", "QA=Quality Analyst")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, display, ok := cfg.Roles.Resolve("DEV"); !ok || display != "Developer" {
		t.Fatalf("roles %v", cfg.Roles)
	}

	t.Setenv("BADGE_ROLES_FILE", filepath.Join(t.TempDir(), "missing.csv"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing roles file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"BADGE_PREVIEW_ALPHA":    "300",
		"BADGE_WORKERS":          "0",
		"BADGE_SCALE_FACTOR":     "1",
		"BADGE_AVATAR_WIDTH":     "-10",
		"BADGE_QR_W":             "0",
		"BADGE_INTERVAL_SECONDS": "0",
		"BADGE_DEBOUNCE_MS":      "-5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s should fail validation", key, value)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#000", color.NRGBA{0, 0, 0, 255}, true},
		{"fff", color.NRGBA{255, 255, 255, 255}, true},
		{"#1a2B3c", color.NRGBA{0x1a, 0x2b, 0x3c, 255}, true},
		{"#11223344", color.NRGBA{0x11, 0x22, 0x33, 0x44}, true},
		{"#12345", color.NRGBA{}, false},
		{"#gggggg", color.NRGBA{}, false},
	}
	for _, c := range cases {
		got, err := ParseColor(c.in)
		if (err == nil) != c.ok || got != c.want {
			t.Errorf("ParseColor(%q) = %v, %v", c.in, got, err)
		}
	}
}
