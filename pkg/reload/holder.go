// Package reload keeps an options snapshot current while the files it was
// built from change on disk.
package reload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-optfactory"
)

// Loader builds a fresh snapshot, typically by re-reading value files and
// calling Factory.CreateFromStack.
type Loader func() (*optfactory.Options, error)

// ChangeFunc is called after a successful reload with the previous and the
// new snapshot and the dotted paths whose values differ.
type ChangeFunc func(previous, current *optfactory.Options, changed []string)

// Option configures a Holder.
type Option func(*Holder)

// WithLogger sets the logger used for reload and watch events.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Holder) {
		h.logger = logger
	}
}

// WithPaths sets the files Watch reacts to.
func WithPaths(paths ...string) Option {
	return func(h *Holder) {
		for _, path := range paths {
			if path != "" {
				h.paths = append(h.paths, path)
			}
		}
	}
}

// ErrWatching is returned by Watch when the holder is already watching.
var ErrWatching = errors.New("reload: already watching")

// Holder provides concurrent access to the latest snapshot. Snapshots are
// immutable, so readers can keep using the value Get returned while a
// reload replaces it.
type Holder struct {
	mu       sync.RWMutex
	current  *optfactory.Options
	load     Loader
	logger   zerolog.Logger
	paths    []string
	onChange []ChangeFunc
	// reloading serializes Reload so an older load never replaces a newer one.
	reloading sync.Mutex
	watcher   *fsnotify.Watcher
}

// New loads the initial snapshot. It fails when the first load fails.
func New(load Loader, opts ...Option) (*Holder, error) {
	if load == nil {
		return nil, errors.New("reload: loader is required")
	}
	h := &Holder{load: load, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	current, err := load()
	if err != nil {
		return nil, fmt.Errorf("reload: initial load: %w", err)
	}
	h.current = current
	return h, nil
}

// Get returns the current snapshot.
func (h *Holder) Get() *optfactory.Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers fn to run after every successful reload. fn runs inside
// Reload and must not call it.
func (h *Holder) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Reload rebuilds the snapshot. On failure the previous snapshot is kept.
func (h *Holder) Reload() error {
	h.reloading.Lock()
	defer h.reloading.Unlock()

	next, err := h.load()
	if err != nil {
		h.logger.Error().Err(err).Msg("options reload failed, keeping previous snapshot")
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	previous := h.current
	h.current = next
	listeners := append([]ChangeFunc(nil), h.onChange...)
	h.mu.Unlock()

	changed := Changed(previous, next)
	h.logger.Info().
		Str("snapshot", next.ID()).
		Strs("changed", changed).
		Msg("options reloaded")
	for _, fn := range listeners {
		fn(previous, next, changed)
	}
	return nil
}

// Watch reloads whenever one of the configured paths is written or
// recreated. Directories are watched rather than files so editors that save
// atomically are picked up. Watch returns once the watcher is running; it
// stops when ctx is done or Close is called.
func (h *Holder) Watch(ctx context.Context) error {
	h.mu.Lock()
	if h.watcher != nil {
		h.mu.Unlock()
		return ErrWatching
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("reload: create watcher: %w", err)
	}
	h.watcher = watcher
	h.mu.Unlock()

	targets := map[string]bool{}
	dirs := map[string]bool{}
	for _, path := range h.paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = h.Close()
			return fmt.Errorf("reload: resolve %s: %w", path, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = h.Close()
			return fmt.Errorf("reload: watch %s: %w", dir, err)
		}
	}

	go h.watchLoop(ctx, watcher, targets)

	h.logger.Info().Strs("paths", h.paths).Msg("watching option files for changes")
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, targets map[string]bool) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("option file changed")
			_ = h.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-ctx.Done():
			_ = h.Close()
			return
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (h *Holder) Close() error {
	h.mu.Lock()
	watcher := h.watcher
	h.watcher = nil
	h.mu.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Close()
}

// Changed lists the dotted paths whose values differ between two snapshots,
// sorted. A nil snapshot counts as empty.
func Changed(previous, current *optfactory.Options) []string {
	before := map[string]any{}
	after := map[string]any{}
	if previous != nil {
		flatten(before, "", previous.ToMap(true))
	}
	if current != nil {
		flatten(after, "", current.ToMap(true))
	}
	var changed []string
	for path, value := range after {
		if old, ok := before[path]; !ok || !reflect.DeepEqual(old, value) {
			changed = append(changed, path)
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed
}

func flatten(out map[string]any, prefix string, values map[string]any) {
	for key, value := range values {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(out, path, nested)
			continue
		}
		out[path] = value
	}
}
