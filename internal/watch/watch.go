// Package watch reports batches of source file changes under a directory
// tree, debounced so an editor's burst of writes arrives as one batch.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/isg/internal/logging"
)

// Op is the kind of change observed for a path.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Gone reports whether the path no longer exists under its name.
func (op Op) Gone() bool {
	return op == OpRemove || op == OpRename
}

// Change is one path's latest change within a batch.
type Change struct {
	Path string
	Op   Op
}

// Handler receives each debounced batch. Batches are delivered one at a
// time from the watcher's goroutine, in the order paths first changed.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the tree must stay quiet before a batch is
	// delivered. Default 200ms.
	Debounce time.Duration

	// Ignore holds gitignore-style patterns, relative to the root. Hidden
	// files and directories are always ignored.
	Ignore []string

	// Skip, when set, drops any path it reports true for, on top of Ignore.
	// The isg command passes the engine's discovery filter here.
	Skip func(path string) bool

	Logger *slog.Logger
}

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	handler  Handler
	debounce time.Duration
	ignore   *ignore.GitIgnore
	skip     func(string) bool
	logger   *slog.Logger
	fsw      *fsnotify.Watcher

	closeOnce sync.Once
}

// New creates a Watcher for root. Call Run to start delivering changes.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		root:     abs,
		handler:  handler,
		debounce: opts.Debounce,
		ignore:   ignore.CompileIgnoreLines(opts.Ignore...),
		skip:     opts.Skip,
		logger:   opts.Logger,
		fsw:      fsw,
	}
	if w.debounce <= 0 {
		w.debounce = 200 * time.Millisecond
	}
	if w.logger == nil {
		w.logger = logging.Discard()
	}
	return w, nil
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Run watches until ctx is canceled or Close is called. A batch pending at
// that point is delivered before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("watching", "root", w.root)

	var (
		pending []Change
		index   = make(map[string]int)
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		clear(index)
		w.logger.Debug("change batch", "changes", len(batch))
		w.handler(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				flush()
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			pending = coalesce(pending, index, Change{Path: event.Name, Op: convertOp(event.Op)})
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				flush()
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

// ignored applies the hidden-entry rule, the ignore patterns, and Skip to
// path.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	if w.ignore.MatchesPath(rel) {
		return true
	}
	return w.skip != nil && w.skip(path)
}

// coalesce keeps one change per path. A later change replaces an earlier
// one, except that a write after a create is still a create.
func coalesce(pending []Change, index map[string]int, c Change) []Change {
	i, ok := index[c.Path]
	if !ok {
		index[c.Path] = len(pending)
		return append(pending, c)
	}
	if pending[i].Op == OpCreate && c.Op == OpWrite {
		return pending
	}
	pending[i] = c
	return pending
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpWrite
	}
}
