// Package watcher rebuilds the graph when Go sources under a project change.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zheng/modgraph/internal/graph"
)

// RebuildFunc produces a fresh graph of the watched project
type RebuildFunc func(ctx context.Context) (*graph.Graph, error)

// Watcher collects .go changes below a directory and calls its RebuildFunc
// once per burst of changes
type Watcher struct {
	rebuild RebuildFunc
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	tests   bool
	delay   time.Duration
	batch   *batch

	onStart func(files []string)
	onDone  func(g *graph.Graph, duration time.Duration)
	onError func(error)

	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
	busy     sync.Mutex
}

type WatcherOption func(*Watcher)

func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.delay = d }
}

// WithTests makes _test.go changes trigger a rebuild
func WithTests(tests bool) WatcherOption {
	return func(w *Watcher) { w.tests = tests }
}

func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithOnAnalysisStart is called with the sorted changed files before a rebuild
func WithOnAnalysisStart(fn func(files []string)) WatcherOption {
	return func(w *Watcher) { w.onStart = fn }
}

// WithOnAnalysisDone receives every successfully rebuilt graph
func WithOnAnalysisDone(fn func(g *graph.Graph, duration time.Duration)) WatcherOption {
	return func(w *Watcher) { w.onDone = fn }
}

func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// New registers every directory below root except hidden, vendor,
// node_modules and testdata ones
func New(root string, rebuild RebuildFunc, opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		rebuild: rebuild,
		fs:      fs,
		logger:  slog.New(slog.DiscardHandler),
		delay:   500 * time.Millisecond,
		ctx:     context.Background(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.batch = &batch{delay: w.delay, fire: w.flush, files: make(map[string]struct{})}

	if err := w.addTree(root); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to add directories to watch: %w", err)
	}
	return w, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || slices.Contains([]string{"vendor", "node_modules", "testdata"}, name)
}

func (w *Watcher) addTree(top string) error {
	return filepath.WalkDir(top, func(path string, d os.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			return nil
		case path != top && skipDir(d.Name()):
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Watched returns the watched directories, sorted
func (w *Watcher) Watched() []string {
	return slices.Sorted(slices.Values(w.fs.WatchList()))
}

// Run watches until ctx is cancelled or Stop is called. Rebuilds run with ctx.
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return w.Stop()
		case <-w.done:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)
		}
	}
}

// Stop cancels any pending rebuild and releases the fsnotify handle
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.batch.cancel()
		err = w.fs.Close()
	})
	return err
}

// relevant reports whether a changed path should trigger a rebuild
func (w *Watcher) relevant(name string) bool {
	if !strings.HasSuffix(name, ".go") {
		return false
	}
	return w.tests || !strings.HasSuffix(name, "_test.go")
}

const changeOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// new directories join the watch before the file filter
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !skipDir(info.Name()) {
				if err := w.addTree(ev.Name); err != nil {
					w.reportError(err)
				}
			}
			return
		}
	}
	if ev.Op&changeOps == 0 || !w.relevant(ev.Name) {
		return
	}
	w.batch.add(ev.Name)
}

// flush runs one rebuild for the files collected by the batch
func (w *Watcher) flush(files []string) {
	w.busy.Lock()
	defer w.busy.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	w.logger.Info("change detected, rebuilding", "files", len(files))
	if w.onStart != nil {
		w.onStart(files)
	}

	start := time.Now()
	g, err := w.rebuild(w.ctx)
	if err != nil {
		w.reportError(fmt.Errorf("analysis failed: %w", err))
		return
	}
	elapsed := time.Since(start)

	w.logger.Info("rebuild complete", "nodes", g.NodeCount(), "edges", g.EdgeCount(), "duration", elapsed)
	if w.onDone != nil {
		w.onDone(g, elapsed)
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.Error("watcher error", "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}

// batch gathers file names and calls fire with them once no new name has
// arrived for delay
type batch struct {
	mu    sync.Mutex
	delay time.Duration
	fire  func(files []string)
	files map[string]struct{}
	timer *time.Timer
}

func (b *batch) add(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[name] = struct{}{}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.drain)
}

func (b *batch) drain() {
	b.mu.Lock()
	files := slices.Sorted(maps.Keys(b.files))
	clear(b.files)
	b.mu.Unlock()

	if len(files) > 0 {
		b.fire(files)
	}
}

func (b *batch) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	clear(b.files)
}
