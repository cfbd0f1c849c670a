package api

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/badge"
	imagepkg "github.com/youruser/badgeapp/internal/image"
	"github.com/youruser/badgeapp/internal/util"
)

// Composer builds badges in memory.
type Composer interface {
	Compose(filename string, src image.Image, orientation int) (*badge.Badge, error)
	Layout() badge.Layout
}

// Fetcher downloads a photo given by URL.
type Fetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Handlers serve the HTTP surface of the badge pipeline.
type Handlers struct {
	composer Composer
	fetcher  Fetcher
	logger   *zap.Logger
}

func NewHandlers(composer Composer, fetcher Fetcher, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{composer: composer, fetcher: fetcher, logger: logger}
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "layout_version": h.composer.Layout().Version})
}

func (h *Handlers) roles(c *gin.Context) {
	table := h.composer.Layout().Roles
	out := make([]gin.H, 0, len(table))
	for _, code := range table.Codes() {
		out = append(out, gin.H{"code": code, "display": table[code]})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "roles": out})
}

// qr returns a PNG of a QR code for the "text" query param
func (h *Handlers) qr(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	size := 400
	if s := c.Query("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 4096 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 4096"})
			return
		}
		size = v
	}
	b, err := imagepkg.GenerateQRPNG(text, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

type badgeRequest struct {
	Filename string `json:"filename"`
	PhotoURL string `json:"photo_url"`
}

// badge accepts either a multipart upload ("photo", optional "filename") or
// JSON {filename, photo_url}, and answers with the badge PNG.
func (h *Handlers) badge(c *gin.Context) {
	filename, data, status, err := h.readPhoto(c)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	img, orientation, orientErr, err := imagepkg.DecodeSource(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo is not a supported image", "kind": badge.KindAssetReadFailure})
		return
	}
	imagepkg.LogOrientationError(h.logger, filename, orientErr)

	b, err := h.composer.Compose(filename, img, orientation)
	if err != nil {
		kind := badge.KindOf(err)
		h.logger.Error("Badge request failed",
			zap.String("source", filename),
			zap.String("kind", string(kind)),
			zap.Error(err))
		c.JSON(statusFor(kind), gin.H{"error": err.Error(), "kind": kind})
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, b.Image, imaging.PNG); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, w := range b.Warnings {
		c.Writer.Header().Add("X-Badge-Warning", string(w))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Name))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handlers) readPhoto(c *gin.Context) (string, []byte, int, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("photo")
		if err != nil {
			return "", nil, http.StatusBadRequest, fmt.Errorf("photo is required")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, http.StatusBadRequest, err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, util.MaxDownloadBytes))
		if err != nil {
			return "", nil, http.StatusBadRequest, err
		}
		name := c.PostForm("filename")
		if name == "" {
			name = fh.Filename
		}
		return filepath.Base(name), data, 0, nil
	}

	var req badgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", nil, http.StatusBadRequest, err
	}
	if req.Filename == "" || req.PhotoURL == "" {
		return "", nil, http.StatusBadRequest, fmt.Errorf("filename and photo_url are required")
	}
	if h.fetcher == nil {
		return "", nil, http.StatusNotImplemented, fmt.Errorf("photo download is disabled")
	}
	data, err := h.fetcher.Download(c.Request.Context(), req.PhotoURL)
	if err != nil {
		h.logger.Warn("Photo download failed", zap.String("url", req.PhotoURL), zap.Error(err))
		return "", nil, http.StatusBadGateway, fmt.Errorf("photo download failed: %w", err)
	}
	return filepath.Base(req.Filename), data, 0, nil
}

func statusFor(kind badge.Kind) int {
	switch {
	case kind.Validation():
		return http.StatusUnprocessableEntity
	case kind == badge.KindImageTooSmall, kind == badge.KindTextTooLarge:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
