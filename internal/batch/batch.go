package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/youruser/badgeapp/internal/badge"
)

// DefaultExtensions are the photo formats picked up from a source directory.
var DefaultExtensions = []string{"png", "jpg", "jpeg", "bmp", "webp"}

// Processor turns one source file into one badge.
type Processor interface {
	Process(srcPath string) (*badge.Result, error)
}

// Summary reports one pass over a set of source files.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Warned    int
	Elapsed   time.Duration
	Failures  map[string]badge.Kind
}

// Runner feeds source files through a Processor with bounded concurrency.
type Runner struct {
	proc    Processor
	workers int
	exts    map[string]bool
	logger  *zap.Logger
}

func NewRunner(proc Processor, workers int, extensions []string, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts["."+strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")] = true
	}
	return &Runner{proc: proc, workers: workers, exts: exts, logger: logger}
}

// Supported reports whether name has one of the runner's extensions.
func (r *Runner) Supported(name string) bool {
	return r.exts[strings.ToLower(filepath.Ext(name))]
}

// ListSources returns the supported files directly inside dir, sorted.
func (r *Runner) ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !r.Supported(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Run processes every supported file in dir once.
func (r *Runner) Run(ctx context.Context, dir string) (Summary, error) {
	paths, err := r.ListSources(dir)
	if err != nil {
		return Summary{}, err
	}
	return r.RunFiles(ctx, paths), nil
}

// RunFiles processes paths with at most r.workers in flight. Files not yet
// started when ctx is cancelled are skipped.
func (r *Runner) RunFiles(ctx context.Context, paths []string) Summary {
	start := time.Now()
	sum := Summary{Failures: map[string]badge.Kind{}}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, path := range paths {
		path := path
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			res, err := r.proc.Process(path)

			mu.Lock()
			defer mu.Unlock()
			sum.Total++
			if err != nil {
				sum.Failed++
				sum.Failures[filepath.Base(path)] = badge.KindOf(err)
				return
			}
			sum.Succeeded++
			if len(res.Warnings) > 0 {
				sum.Warned++
			}
		})
	}
	p.Wait()

	sum.Elapsed = time.Since(start)
	r.logger.Info("Batch finished",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("warned", sum.Warned),
		zap.Duration("elapsed", sum.Elapsed))
	return sum
}

// Loop runs dir every interval until ctx is done. The first pass starts
// immediately.
func (r *Runner) Loop(ctx context.Context, dir string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("loop interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Run(ctx, dir); err != nil {
			r.logger.Error("Batch pass failed", zap.String("dir", dir), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
