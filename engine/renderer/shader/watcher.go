package shader

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches shader source files and records which ones changed on disk. It watches the
// parent directories rather than the files so editors that save by rename are still seen.
// Reloading is left to the caller, which must do it on the render thread.
type Watcher interface {
	// Add starts watching the file backing s. Shaders without a path are ignored.
	//
	// Parameters:
	//   - s: the shader to watch
	//
	// Returns:
	//   - error: if the directory cannot be watched
	Add(s Shader) error

	// Dirty drains and returns the keys of shaders whose files were written or replaced since
	// the previous call.
	//
	// Returns:
	//   - []string: the shader keys, in no particular order
	Dirty() []string

	// Close stops the watcher.
	//
	// Returns:
	//   - error: any error from the underlying fsnotify watcher
	Close() error
}

type watcher struct {
	fs *fsnotify.Watcher

	mu    sync.Mutex
	dirs  map[string]bool
	files map[string]string // clean path -> shader key
	dirty map[string]struct{}

	done chan struct{}
}

var _ Watcher = &watcher{}

// NewWatcher creates a Watcher and starts its event goroutine.
//
// Returns:
//   - Watcher: the new watcher
//   - error: if fsnotify cannot be initialized
func NewWatcher() (Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader watcher: %w", err)
	}
	w := &watcher{
		fs:    fs,
		dirs:  make(map[string]bool),
		files: make(map[string]string),
		dirty: make(map[string]struct{}),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *watcher) Add(s Shader) error {
	path := s.Path()
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[path] = s.Key()
	return nil
}

func (w *watcher) Dirty() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(w.dirty))
	for k := range w.dirty {
		keys = append(keys, k)
	}
	clear(w.dirty)
	return keys
}

func (w *watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("[Shader] watcher error: %v", err)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if key, ok := w.files[filepath.Clean(ev.Name)]; ok {
		w.dirty[key] = struct{}{}
	}
}
