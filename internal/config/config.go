package config

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/youruser/badgeapp/internal/badge"
	"github.com/youruser/badgeapp/internal/identity"
	imagepkg "github.com/youruser/badgeapp/internal/image"
)

// Config holds every BADGE_* setting of the badge tools.
type Config struct {
	Paths    PathsConfig
	Badge    BadgeConfig
	Avatar   AvatarConfig
	Text     TextConfig
	QR       QRConfig
	Detector DetectorConfig
	Batch    BatchConfig
	Logging  LoggingConfig
	Server   ServerConfig
	Roles    identity.RoleTable
}

type PathsConfig struct {
	SourceDir  string
	OutputDir  string
	DebugDir   string
	Template   string
	Fonts      []string
	Cascade    string
	Extensions []string
}

type BadgeConfig struct {
	Version      string
	Prefix       string
	Background   color.NRGBA
	AllowUpscale bool
	PreviewAlpha int
}

type AvatarConfig struct {
	CenterX int
	CenterY int
	Width   int
	Height  int
	Padding int
}

type TextConfig struct {
	AutoSize   bool
	Size       int
	Name       FieldConfig
	Role       FieldConfig
	Identifier FieldConfig
}

type FieldConfig struct {
	TopPad int
	Size   int
	Color  color.NRGBA
	Font   string
}

type QRConfig struct {
	Enabled    bool
	Text       string
	Company    string
	Fill       color.NRGBA
	Back       color.NRGBA
	ModuleSize int
	Border     int
	Version    int
	X, Y, W, H int
}

type DetectorConfig struct {
	ScaleFactor float64
	MinSize     int
	MaxSize     int
	MinQuality  float64
}

type BatchConfig struct {
	Workers  int
	Interval time.Duration
	Debounce time.Duration
}

type LoggingConfig struct {
	Level string
	File  string
}

type ServerConfig struct {
	Port string
}

var black = color.NRGBA{0, 0, 0, 255}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Paths: PathsConfig{
			SourceDir:  getEnv("BADGE_SOURCE_DIR", "images"),
			OutputDir:  getEnv("BADGE_OUTPUT_DIR", "output"),
			DebugDir:   getEnv("BADGE_DEBUG_DIR", ""),
			Template:   getEnv("BADGE_TEMPLATE", "assets/template.png"),
			Fonts:      parseCommaSeparated(getEnv("BADGE_FONTS", "")),
			Cascade:    getEnv("BADGE_CASCADE", ""),
			Extensions: parseCommaSeparated(getEnv("BADGE_EXTENSIONS", "png,jpg,jpeg,bmp,webp")),
		},
		Badge: BadgeConfig{
			Version:      getEnv("BADGE_LAYOUT_VERSION", "1"),
			Prefix:       getEnv("BADGE_PREFIX", "TMA"),
			Background:   getEnvColor("BADGE_BACKGROUND", color.NRGBA{255, 255, 255, 255}),
			AllowUpscale: getEnvBool("BADGE_ALLOW_UPSCALE", false),
			PreviewAlpha: getEnvInt("BADGE_PREVIEW_ALPHA", 0),
		},
		Avatar: AvatarConfig{
			CenterX: getEnvInt("BADGE_AVATAR_X", 319),
			CenterY: getEnvInt("BADGE_AVATAR_Y", 391),
			Width:   getEnvInt("BADGE_AVATAR_WIDTH", 400),
			Height:  getEnvInt("BADGE_AVATAR_HEIGHT", 400),
			Padding: getEnvInt("BADGE_AVATAR_PADDING", 10),
		},
		Text: TextConfig{
			AutoSize:   getEnvBool("BADGE_AUTO_SIZE", true),
			Size:       getEnvInt("BADGE_TEXT_SIZE", 60),
			Name:       getField("NAME", 40, 60),
			Role:       getField("ROLE", 10, 50),
			Identifier: getField("ID", 10, 45),
		},
		QR: QRConfig{
			Enabled:    getEnvBool("BADGE_QR_ENABLED", true),
			Text:       getEnv("BADGE_QR_TEXT", ""),
			Company:    getEnv("BADGE_QR_COMPANY", "https://www.tma.vn"),
			Fill:       getEnvColor("BADGE_QR_FILL", black),
			Back:       getEnvColor("BADGE_QR_BACK", color.NRGBA{255, 255, 255, 255}),
			ModuleSize: getEnvInt("BADGE_QR_BOXSIZE", 10),
			Border:     getEnvInt("BADGE_QR_BORDER", 4),
			Version:    getEnvInt("BADGE_QR_VERSION", 0),
			X:          getEnvInt("BADGE_QR_X", 480),
			Y:          getEnvInt("BADGE_QR_Y", 820),
			W:          getEnvInt("BADGE_QR_W", 120),
			H:          getEnvInt("BADGE_QR_H", 120),
		},
		Detector: DetectorConfig{
			ScaleFactor: getEnvFloat("BADGE_SCALE_FACTOR", 1.1),
			MinSize:     getEnvInt("BADGE_FACE_MIN_SIZE", 30),
			MaxSize:     getEnvInt("BADGE_FACE_MAX_SIZE", 0),
			MinQuality:  getEnvFloat("BADGE_FACE_MIN_QUALITY", 5.0),
		},
		Batch: BatchConfig{
			Workers:  getEnvInt("BADGE_WORKERS", 4),
			Interval: time.Duration(getEnvInt("BADGE_INTERVAL_SECONDS", 60)) * time.Second,
			Debounce: time.Duration(getEnvInt("BADGE_DEBOUNCE_MS", 500)) * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: getEnv("BADGE_LOG_LEVEL", "info"),
			File:  getEnv("BADGE_LOG_FILE", ""),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
	}

	roles, err := loadRoles()
	if err != nil {
		return nil, err
	}
	cfg.Roles = roles

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadRoles prefers BADGE_ROLES_FILE, then BADGE_ROLES, then the built-in table.
func loadRoles() (identity.RoleTable, error) {
	if path := getEnv("BADGE_ROLES_FILE", ""); path != "" {
		roles, err := identity.LoadRoleTableCSV(path)
		if err != nil {
			return nil, fmt.Errorf("BADGE_ROLES_FILE: %w", err)
		}
		return roles, nil
	}
	if list := getEnv("BADGE_ROLES", ""); list != "" {
		roles, err := identity.ParseRoleList(list)
		if err != nil {
			return nil, fmt.Errorf("BADGE_ROLES: %w", err)
		}
		return roles, nil
	}
	return identity.DefaultRoles(), nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Paths.Template == "" {
		return fmt.Errorf("BADGE_TEMPLATE is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("BADGE_OUTPUT_DIR is required")
	}
	if c.Badge.Prefix == "" {
		return fmt.Errorf("BADGE_PREFIX is required")
	}
	if c.Avatar.Width+c.Avatar.Padding <= 0 {
		return fmt.Errorf("BADGE_AVATAR_WIDTH + BADGE_AVATAR_PADDING must be positive")
	}
	if c.Badge.PreviewAlpha < 0 || c.Badge.PreviewAlpha > 255 {
		return fmt.Errorf("BADGE_PREVIEW_ALPHA must be within 0-255, got %d", c.Badge.PreviewAlpha)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("BADGE_WORKERS must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Batch.Interval <= 0 {
		return fmt.Errorf("BADGE_INTERVAL_SECONDS must be positive, got %s", c.Batch.Interval)
	}
	if c.Batch.Debounce <= 0 {
		return fmt.Errorf("BADGE_DEBOUNCE_MS must be positive, got %s", c.Batch.Debounce)
	}
	if c.QR.Enabled && (c.QR.W <= 0 || c.QR.H <= 0) {
		return fmt.Errorf("BADGE_QR_W and BADGE_QR_H must be positive")
	}
	if c.Detector.ScaleFactor <= 1 {
		return fmt.Errorf("BADGE_SCALE_FACTOR must be greater than 1, got %g", c.Detector.ScaleFactor)
	}
	if len(c.Roles) == 0 {
		return fmt.Errorf("role table is empty")
	}
	return nil
}

// Layout converts the configuration into the pipeline's immutable layout.
func (c *Config) Layout() badge.Layout {
	return badge.Layout{
		Version: c.Badge.Version,
		Prefix:  c.Badge.Prefix,
		Geometry: imagepkg.TemplateGeometry{
			AvatarCenterX: c.Avatar.CenterX,
			AvatarCenterY: c.Avatar.CenterY,
			AvatarWidth:   c.Avatar.Width,
			AvatarHeight:  c.Avatar.Height,
			AvatarPadding: c.Avatar.Padding,
		},
		Background: c.Badge.Background,
		Name:       c.Text.Name.textField("name", badge.NameReduction),
		Role:       c.Text.Role.textField("role", badge.RoleReduction),
		Identifier: c.Text.Identifier.textField("identifier", badge.IdentifierReduction),
		AutoSize:   c.Text.AutoSize,
		TextSize:   c.Text.Size,
		QR: badge.QRLayout{
			Enabled: c.QR.Enabled,
			Text:    c.QR.Text,
			Company: c.QR.Company,
			Style: imagepkg.QRStyle{
				Fill:       c.QR.Fill,
				Back:       c.QR.Back,
				ModuleSize: c.QR.ModuleSize,
				Border:     c.QR.Border,
				Version:    c.QR.Version,
			},
			Box: image.Rect(c.QR.X, c.QR.Y, c.QR.X+c.QR.W, c.QR.Y+c.QR.H),
		},
		ScaleFactor:          c.Detector.ScaleFactor,
		AllowUpscale:         c.Badge.AllowUpscale,
		PreviewTemplateAlpha: uint8(c.Badge.PreviewAlpha),
		OutputDir:            c.Paths.OutputDir,
		DebugDir:             c.Paths.DebugDir,
		Roles:                c.Roles,
	}
}

func (f FieldConfig) textField(name string, reduction int) imagepkg.TextField {
	return imagepkg.TextField{
		Name:          name,
		TopPad:        f.TopPad,
		BaseSize:      f.Size,
		SizeReduction: reduction,
		Color:         f.Color,
		Font:          f.Font,
	}
}

// getField reads BADGE_<FIELD>_TOP_PAD, _SIZE, _COLOR and _FONT. The name
// field defaults to the bold face.
func getField(field string, topPad, size int) FieldConfig {
	font := imagepkg.FontRegular
	if field == "NAME" {
		font = imagepkg.FontBold
	}
	prefix := "BADGE_" + field + "_"
	return FieldConfig{
		TopPad: getEnvInt(prefix+"TOP_PAD", topPad),
		Size:   getEnvInt(prefix+"SIZE", size),
		Color:  getEnvColor(prefix+"COLOR", black),
		Font:   getEnv(prefix+"FONT", font),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvColor(key string, defaultValue color.NRGBA) color.NRGBA {
	if value := os.Getenv(key); value != "" {
		if c, err := ParseColor(value); err == nil {
			return c
		}
	}
	return defaultValue
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa, with or without the hash.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
