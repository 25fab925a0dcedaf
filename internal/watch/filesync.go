// Package watch keeps a scene file on disk and a document in step: edits
// made to the file by other programs are loaded into the document, and the
// document can be written back without being reloaded as an outside change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"promptscene/internal/document"
	"promptscene/internal/logging"
)

// Document is the part of a document manager the file sync uses.
type Document interface {
	Text() string
	SetText(text string, origin document.Origin, immediate bool)
}

// Stats counts file sync activity.
type Stats struct {
	Reloads       int
	Writes        int
	Ignored       int
	Errors        int
	LastEventTime time.Time
	LastEventType string
}

// Option configures a FileSync.
type Option func(*FileSync)

// WithDebounce sets how long the file must be quiet before it is reloaded.
func WithDebounce(d time.Duration) Option {
	return func(f *FileSync) { f.debounceDur = d }
}

// WithOnReload registers a callback run after an outside change is loaded.
// It runs on the watcher goroutine.
func WithOnReload(fn func(path string)) Option {
	return func(f *FileSync) { f.onReload = fn }
}

// FileSync binds one scene file to a document.
type FileSync struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	doc         Document
	path        string
	debounceDur time.Duration
	onReload    func(path string)

	// lastSeen is the file content the document was last loaded from or
	// written with.
	lastSeen  string
	pendingAt time.Time
	pending   bool

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stats   Stats
}

// New binds path to doc. Nothing is read or watched until Load and Start.
func New(path string, doc Document, opts ...Option) (*FileSync, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	f := &FileSync{
		doc:         doc,
		path:        abs,
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the absolute file path.
func (f *FileSync) Path() string { return f.path }

// Stats returns a copy of the counters.
func (f *FileSync) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stats
}

// Load reads the file into the document. A missing file loads as empty
// text and is not an error.
func (f *FileSync) Load() error {
	data, err := os.ReadFile(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Audit().FileOp(logging.AuditFileError, f.path, 0, err)
		return fmt.Errorf("read scene file: %w", err)
	}
	text := string(data)

	f.mu.Lock()
	f.lastSeen = text
	f.mu.Unlock()

	f.doc.SetText(text, document.OriginFile, true)
	logging.Audit().FileOp(logging.AuditFileRead, f.path, len(data), nil)
	logging.Watch("loaded %s (%d bytes)", f.path, len(data))
	return nil
}

// Save writes the document's text to the file. The write replaces the file
// atomically and is not reported back as an outside change.
func (f *FileSync) Save() error {
	text := f.doc.Text()

	f.mu.Lock()
	prev := f.lastSeen
	f.lastSeen = text
	f.mu.Unlock()

	if err := writeAtomic(f.path, []byte(text)); err != nil {
		f.mu.Lock()
		f.lastSeen = prev
		f.stats.Errors++
		f.mu.Unlock()
		logging.Audit().FileOp(logging.AuditFileError, f.path, 0, err)
		return fmt.Errorf("write scene file: %w", err)
	}

	f.mu.Lock()
	f.stats.Writes++
	f.mu.Unlock()
	logging.Audit().FileOp(logging.AuditFileWrite, f.path, len(text), nil)
	logging.Watch("saved %s (%d bytes)", f.path, len(text))
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Start watches the file's directory in a goroutine. Editors often replace
// files instead of writing them in place, so the directory is watched
// rather than the file.
func (f *FileSync) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		f.mu.Unlock()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	f.watcher = w
	f.running = true
	f.mu.Unlock()

	logging.Watch("watching %s", f.path)
	go f.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (f *FileSync) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh

	if err := f.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("stopped watching %s", f.path)
}

func (f *FileSync) run(ctx context.Context) {
	defer close(f.doneCh)

	ticker := time.NewTicker(max(f.debounceDur/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-f.stopCh:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher error: %v", err)
			f.mu.Lock()
			f.stats.Errors++
			f.mu.Unlock()

		case <-ticker.C:
			f.processPending()
		}
	}
}

func (f *FileSync) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != f.path {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return
	}
	logging.WatchDebug("%s event for %s", eventType, event.Name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.LastEventTime = time.Now()
	f.stats.LastEventType = eventType
	if eventType == "create" || eventType == "modify" {
		f.pending = true
		f.pendingAt = time.Now()
	}
}

// processPending reloads the file once it has been quiet for the debounce
// window.
func (f *FileSync) processPending() {
	f.mu.Lock()
	if !f.pending || time.Since(f.pendingAt) < f.debounceDur {
		f.mu.Unlock()
		return
	}
	f.pending = false
	f.mu.Unlock()

	f.reload()
}

func (f *FileSync) reload() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		logging.WatchError("failed to read %s: %v", f.path, err)
		logging.Audit().FileOp(logging.AuditFileError, f.path, 0, err)
		f.mu.Lock()
		f.stats.Errors++
		f.mu.Unlock()
		return
	}
	text := string(data)

	f.mu.Lock()
	if text == f.lastSeen {
		f.stats.Ignored++
		f.mu.Unlock()
		logging.WatchDebug("ignoring unchanged content in %s", f.path)
		return
	}
	f.lastSeen = text
	f.stats.Reloads++
	f.mu.Unlock()

	f.doc.SetText(text, document.OriginFile, true)
	logging.Audit().FileOp(logging.AuditFileReload, f.path, len(data), nil)
	logging.Watch("reloaded %s after outside change", f.path)
	if f.onReload != nil {
		f.onReload(f.path)
	}
}
