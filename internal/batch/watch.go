package batch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Watch processes files created or rewritten in dir once they have been
// quiet for debounce. It blocks until ctx is done and waits for in-flight
// files before returning.
func (r *Runner) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	r.logger.Info("Watching source directory", zap.String("dir", dir), zap.Duration("debounce", debounce))

	p := pool.New().WithMaxGoroutines(r.workers)
	defer p.Wait()

	tick := debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := map[string]time.Time{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !r.Supported(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for path, seen := range pending {
				if now.Sub(seen) < debounce {
					continue
				}
				delete(pending, path)
				path := path
				p.Go(func() {
					if _, err := r.proc.Process(path); err != nil {
						r.logger.Debug("Watched file failed", zap.String("source", filepath.Base(path)))
					}
				})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("Watch error", zap.Error(err))
		}
	}
}
