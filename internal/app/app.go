package app

import (
	"fmt"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/badge"
	"github.com/youruser/badgeapp/internal/batch"
	"github.com/youruser/badgeapp/internal/config"
	"github.com/youruser/badgeapp/internal/detect"
	imagepkg "github.com/youruser/badgeapp/internal/image"
)

// Container bundles the assembled pipeline and the components built on it.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Pipeline   *badge.Pipeline
	Runner     *batch.Runner
	Downloader *imagepkg.Downloader
}

// Build loads the template, fonts and detector named by cfg and wires the
// pipeline. Nothing is written to disk here.
func Build(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	template, err := imaging.Open(cfg.Paths.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}

	fonts, err := imagepkg.NewFontSet(cfg.Paths.Fonts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	detector, err := buildDetector(cfg)
	if err != nil {
		return nil, err
	}

	layout := cfg.Layout()
	pipeline, err := badge.New(layout, template, fonts, detector,
		imagepkg.QRGenerator{Style: layout.QR.Style}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	eff := pipeline.Layout()
	logger.Info("Pipeline ready",
		zap.String("layout_version", eff.Version),
		zap.String("template", cfg.Paths.Template),
		zap.Int("canvas_width", eff.Geometry.CanvasWidth),
		zap.Int("canvas_height", eff.Geometry.CanvasHeight),
		zap.Int("crop_side", eff.Geometry.CropSide()),
		zap.Int("roles", len(eff.Roles)),
		zap.Bool("face_detection", cfg.Paths.Cascade != ""))

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Pipeline:   pipeline,
		Runner:     batch.NewRunner(pipeline, cfg.Batch.Workers, cfg.Paths.Extensions, logger),
		Downloader: imagepkg.NewDownloader(logger),
	}, nil
}

func buildDetector(cfg *config.Config) (imagepkg.Detector, error) {
	if cfg.Paths.Cascade == "" {
		return detect.None{}, nil
	}
	det, err := detect.NewPigo(cfg.Paths.Cascade, detect.Options{
		MinSize:      cfg.Detector.MinSize,
		MaxSize:      cfg.Detector.MaxSize,
		ShiftFactor:  detect.DefaultOptions.ShiftFactor,
		IoUThreshold: detect.DefaultOptions.IoUThreshold,
		MinQuality:   float32(cfg.Detector.MinQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load face cascade: %w", err)
	}
	return det, nil
}
