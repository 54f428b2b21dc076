package packaging

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts of file events into one refresh.
const DefaultDebounce = 500 * time.Millisecond

// Watch refreshes the dist assets whenever a source tree changes, until ctx is
// cancelled. onRefresh, when set, receives the outcome of every refresh.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, onRefresh func([]AssetResult, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, src := range []string{b.cfg.Resolve(b.cfg.Build.SourceDB), b.cfg.Resolve(b.cfg.Build.SourceIcons)} {
		if err := addRecursive(watcher, src); err != nil {
			log.Warnf("watch %s: %v", src, err)
		}
	}

	// fire is nil while no refresh is pending; each event re-arms it.
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, errStat := os.Stat(ev.Name); errStat == nil && info.IsDir() {
					_ = addRecursive(watcher, ev.Name)
				}
			}
			log.Debugf("change: %s", ev)
			fire = time.After(debounce)
		case errWatch, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watcher: %v", errWatch)
		case <-fire:
			fire = nil
			results, errRefresh := b.RefreshAssets()
			if errRefresh != nil {
				log.Errorf("refresh assets: %v", errRefresh)
			}
			if onRefresh != nil {
				onRefresh(results, errRefresh)
			}
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
