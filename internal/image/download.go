package imagepkg

import (
	"context"
	"errors"
	"time"

	"github.com/youruser/badgeapp/internal/util"
	"go.uber.org/zap"
)

// DownloadTimeout bounds a single attempt.
const DownloadTimeout = 30 * time.Second

// Downloader fetches source photos before they enter the pipeline.
type Downloader struct {
	Attempts int
	Backoff  time.Duration // doubled after every failed attempt
	Logger   *zap.Logger
}

// NewDownloader retries three times after the first attempt, waiting 1s, 2s, 4s.
func NewDownloader(logger *zap.Logger) *Downloader {
	return &Downloader{Attempts: 4, Backoff: time.Second, Logger: logger}
}

// Download returns the raw bytes at url. Client errors (4xx other than 429)
// are not retried.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	attempts := max(d.Attempts, 1)
	wait := d.Backoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, err := util.GetBytes(ctx, url, DownloadTimeout)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *util.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		if i == attempts-1 {
			break
		}
		if d.Logger != nil {
			d.Logger.Warn("Download failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", i+1),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return nil, lastErr
}
