// Package watcher re-heals test files when they change on disk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Handler is invoked once per debounced change of a matching file.
type Handler func(ctx context.Context, path string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock overrides the clock used for debouncing.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// Watcher watches a directory tree and calls the handler for changed test files.
// Handlers run one at a time on the event loop; events for a file that arrive within the
// debounce window after its last handler finished are dropped, which also swallows the
// writes made by the healer's own patch.
type Watcher struct {
	root     string
	match    func(name string) bool
	debounce time.Duration
	handler  Handler
	logger   ports.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastDone map[string]time.Time
}

// New builds a Watcher. match decides which file names are test files.
func New(root string, match func(string) bool, debounce time.Duration, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		match:    match,
		debounce: debounce,
		handler:  handler,
		now:      time.Now,
		lastDone: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled or the underlying watcher fails to start.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.log("watching for changes", map[string]interface{}{"root": w.root})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(event.Name) {
					_ = w.addTree(fw, event.Name)
					continue
				}
			}
			w.handle(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("watch error", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !w.Relevant(event.Name, event.Op) {
		return
	}
	path := event.Name
	if !w.due(path) {
		return
	}
	w.log("change detected", map[string]interface{}{"file": path})
	w.handler(ctx, path)
	w.markDone(path)
}

// Relevant reports whether an event on name should trigger a heal.
func (w *Watcher) Relevant(name string, op fsnotify.Op) bool {
	if op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	base := filepath.Base(name)
	if strings.HasSuffix(base, domain.BackupSuffix) || strings.HasSuffix(base, ".tmp") || strings.HasPrefix(base, ".") {
		return false
	}
	if strings.Contains(filepath.ToSlash(name), "/"+domain.CacheDirName+"/") {
		return false
	}
	return w.match(base)
}

func (w *Watcher) due(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.lastDone[path]
	return !ok || w.now().Sub(last) >= w.debounce
}

func (w *Watcher) markDone(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastDone[path] = w.now()
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func skipDir(path string) bool {
	base := filepath.Base(path)
	switch base {
	case domain.CacheDirName, "node_modules", "__pycache__", "venv":
		return true
	}
	return strings.HasPrefix(base, ".")
}

func (w *Watcher) log(msg string, fields map[string]interface{}) {
	if w.logger != nil {
		w.logger.Info(msg, fields)
	}
}
