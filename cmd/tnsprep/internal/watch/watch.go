// Package watch reports batches of changed template files.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is used when Options.Debounce is zero
const DefaultDebounce = 100 * time.Millisecond

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	// Filter selects the files worth reporting; nil accepts everything
	Filter func(path string) bool
	// Exclude lists directory names that are never watched
	Exclude []string
	Logger  *zerolog.Logger
}

// Watcher follows directory trees and explicitly named files
type Watcher struct {
	fs    *fsnotify.Watcher
	opts  Options
	log   zerolog.Logger
	dirs  map[string]bool // walked recursively
	files map[string]bool // named explicitly
}

// New starts watching paths. Directories are watched recursively, skipping
// hidden and excluded ones.
func New(paths []string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fs:    fsw,
		opts:  opts,
		log:   zerolog.Nop(),
		dirs:  make(map[string]bool),
		files: make(map[string]bool),
	}
	if opts.Logger != nil {
		w.log = *opts.Logger
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, path := range paths {
		if err := w.add(path); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if !info.IsDir() {
		w.files[filepath.Clean(path)] = true
		if err := w.fs.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	}
	return w.addTree(path)
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.skipDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.dirs[filepath.Clean(path)] = true
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ex := range w.opts.Exclude {
		if name == ex {
			return true
		}
	}
	return false
}

// Dirs returns the watched directories
func (w *Watcher) Dirs() []string {
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Run delivers changed files to onChange until ctx is done. Events are
// collected until the debounce interval passes quietly, then reported once,
// sorted and without duplicates. Removed files are not reported.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.accept(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			debounce.Reset(w.opts.Debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case <-debounce.C:
			var changed []string
			for path := range pending {
				if info, err := os.Stat(path); err == nil && !info.IsDir() {
					changed = append(changed, path)
				}
			}
			clear(pending)

			if len(changed) > 0 {
				sort.Strings(changed)
				w.log.Debug().Strs("files", changed).Msg("files changed")
				onChange(changed)
			}
		}
	}
}

// accept filters an event and follows newly created directories
func (w *Watcher) accept(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)

	if event.Has(fsnotify.Create) && w.dirs[filepath.Dir(name)] {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if !w.skipDir(info.Name()) {
				if err := w.addTree(name); err != nil {
					w.log.Warn().Err(err).Str("dir", name).Msg("failed to watch new directory")
				}
			}
			return false
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !w.files[name] && !w.dirs[filepath.Dir(name)] {
		return false
	}
	if w.opts.Filter != nil && !w.opts.Filter(name) {
		return false
	}
	return true
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fs.Close()
}
