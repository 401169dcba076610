package bundle

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

// DefaultDebounce is the quiet period Watch waits for before rebuilding.
const DefaultDebounce = 500 * time.Millisecond

// BuildFunc receives the outcome of every build Watch runs.
type BuildFunc func(*hexagonal.BundleResult, error)

// Watch runs BuildAll once, then again whenever the function or shared
// sources change, until ctx is done. Rapid changes are coalesced.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, onBuild BuildFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onBuild == nil {
		onBuild = func(*hexagonal.BundleResult, error) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	for _, dir := range []string{b.layout.FunctionsSource(), b.layout.SharedSource()} {
		if !exists(dir) {
			continue
		}
		if err := addDirRecursive(watcher, dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		b.log.Info("watching", zap.String("dir", dir))
	}

	onBuild(b.BuildAll(ctx))

	var debounceTimer *time.Timer
	rebuild := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if b.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories are not watched automatically.
				_ = addDirRecursive(watcher, event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})

		case <-rebuild:
			b.log.Info("change detected, rebuilding")
			onBuild(b.BuildAll(ctx))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("watch error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}

// ignored reports whether a changed path should not trigger a rebuild.
func (b *Builder) ignored(path string) bool {
	base := filepath.Base(path)
	if hidden(base) || base == "__pycache__" || strings.HasSuffix(base, "~") {
		return true
	}
	dist, err := filepath.Abs(b.layout.DistDir())
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == dist || strings.HasPrefix(abs, dist+string(filepath.Separator))
}

// addDirRecursive adds a directory and all subdirectories to the watcher.
func addDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (hidden(name) || name == "__pycache__" || name == "vendor") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
