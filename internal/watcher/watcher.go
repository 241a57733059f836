package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	DefaultIgnoreTimeout   = time.Second
	DefaultDebounceTimeout = 100 * time.Millisecond
	defaultCleanupInterval = 15 * time.Second
	eventBufferSize        = 64
)

// watchedEvents covers in-place writes and the write-then-rename saves most editors do.
const watchedEvents = notify.Write | notify.Create | notify.Rename

// FilterFunc returns true for paths that should be dropped before debouncing.
type FilterFunc func(path string) bool

// Watcher reports files that changed under a root, one debounced event per burst.
type Watcher struct {
	root      string
	rawEvents chan notify.EventInfo
	events    chan string
	sendMu    sync.Mutex
	closed    bool
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	ignore          map[string]time.Time
	ignoreMu        sync.Mutex
	ignoreTimeout   time.Duration
	cleanupInterval time.Duration

	pending         map[string]*time.Timer
	debounceMu      sync.Mutex
	debounceTimeout time.Duration

	filter FilterFunc
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTimeout = d
	}
}

func WithFilter(f FilterFunc) Option {
	return func(w *Watcher) {
		w.filter = f
	}
}

func WithIgnoreTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		w.ignoreTimeout = d
	}
}

func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:            root,
		done:            make(chan struct{}),
		ignore:          make(map[string]time.Time),
		ignoreTimeout:   DefaultIgnoreTimeout,
		cleanupInterval: defaultCleanupInterval,
		pending:         make(map[string]*time.Timer),
		debounceTimeout: DefaultDebounceTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", w.root)

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.events = make(chan string, eventBufferSize)

	if err := notify.Watch(filepath.Join(w.root, "..."), w.rawEvents, watchedEvents); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.filterEvents(ctx)
	go w.cleanupExpired(ctx)
	return nil
}

// Stop ends the watch and closes Events once pending bursts are flushed.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.rawEvents != nil {
			notify.Stop(w.rawEvents)
		}
		w.wg.Wait()
		slog.Info("file watcher stopped")
	})
}

func (w *Watcher) Events() <-chan string {
	return w.events
}

// IgnoreOnce drops the next event for path, as long as it arrives before the ignore timeout.
// Use it before writing a file locally that should not bounce back as an upload.
func (w *Watcher) IgnoreOnce(path string) {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	w.ignore[filepath.Clean(path)] = time.Now().Add(w.ignoreTimeout)
}

func (w *Watcher) consumeIgnore(path string) bool {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()

	expiry, ok := w.ignore[path]
	if !ok {
		return false
	}
	delete(w.ignore, path)
	return time.Now().Before(expiry)
}

func (w *Watcher) filterEvents(ctx context.Context) {
	defer func() {
		w.debounceMu.Lock()
		paths := make([]string, 0, len(w.pending))
		for path, timer := range w.pending {
			if timer.Stop() {
				paths = append(paths, path)
			}
		}
		w.pending = map[string]*time.Timer{}
		w.debounceMu.Unlock()

		for _, path := range paths {
			w.emit(path)
		}

		w.sendMu.Lock()
		w.closed = true
		close(w.events)
		w.sendMu.Unlock()
		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.rawEvents:
			if !ok {
				return
			}
			if w.filter != nil && w.filter(ev.Path()) {
				continue
			}
			w.debounce(ev.Path())
		}
	}
}

// debounce coalesces the burst of write events inotify emits while a file is being written.
func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounceTimeout, func() {
		w.debounceMu.Lock()
		delete(w.pending, path)
		w.debounceMu.Unlock()
		w.emit(path)
	})
}

func (w *Watcher) emit(path string) {
	if w.consumeIgnore(path) {
		slog.Debug("file watcher ignored", "path", path)
		return
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed {
		return
	}

	select {
	case w.events <- path:
		slog.Debug("file watcher", "path", path)
	default:
		slog.Warn("file watcher dropped", "reason", "channel full", "path", path)
	}
}

func (w *Watcher) cleanupExpired(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			now := time.Now()
			w.ignoreMu.Lock()
			for path, expiry := range w.ignore {
				if now.After(expiry) {
					delete(w.ignore, path)
				}
			}
			w.ignoreMu.Unlock()
		}
	}
}
