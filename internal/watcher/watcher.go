// Package watcher reports page source changes under a project root.
//
// fsnotify events are filtered, converted to canonical page paths relative
// to the root and debounced, so an editor's burst of writes to one file
// arrives as a single change. Directories created after Start are watched
// as they appear.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/types"
)

// FileWatcher watches a project root with debouncing.
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	exclude   FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
	wg        sync.WaitGroup
}

// ChangeEvent is one debounced source change.
type ChangeEvent struct {
	Type EventType
	// Path is the canonical page path, e.g. "/views/Home.tmpl"
	Path string
	// FullPath is the path on disk
	FullPath string
	ModTime  time.Time
	Size     int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a canonical path is of interest.
type FileFilter func(pagePath string) bool

// ChangeHandler handles a debounced batch of changes.
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a watcher for the project at root.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		root:    absRoot,
		watcher: watcher,
		debouncer: &Debouncer{
			delay:   debounceDelay,
			events:  make(chan ChangeEvent, 256),
			output:  make(chan []ChangeEvent, 16),
			pending: make([]ChangeEvent, 0),
		},
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		logger:   logger.WithComponent("watcher"),
	}, nil
}

// Root returns the absolute watch root.
func (fw *FileWatcher) Root() string { return fw.root }

// AddFilter adds a file filter. An event passes when every filter accepts it.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// Exclude skips files and whole directories with a path segment matching
// one of the base-name globs. Call it before AddRecursive.
func (fw *FileWatcher) Exclude(patterns ...string) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.exclude = ExcludeFilter(patterns...)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches dir (relative to the root, or absolute inside it)
// and all of its subdirectories.
func (fw *FileWatcher) AddRecursive(dir string) error {
	full := dir
	if !filepath.IsAbs(full) {
		full = filepath.Join(fw.root, filepath.FromSlash(strings.TrimPrefix(dir, "/")))
	}
	if _, err := fw.canonical(full); err != nil {
		return err
	}

	return filepath.Walk(full, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if p != full && !fw.accepts(fw.mustCanonical(p)) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(p)
	})
}

// canonical maps an absolute path under the root to a canonical page path.
func (fw *FileWatcher) canonical(full string) (string, error) {
	rel, err := filepath.Rel(fw.root, full)
	if err != nil {
		return "", fmt.Errorf("path %s: %w", full, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside watch root %s", full, fw.root)
	}
	return types.Canonical(filepath.ToSlash(rel)), nil
}

func (fw *FileWatcher) mustCanonical(full string) string {
	p, err := fw.canonical(full)
	if err != nil {
		return ""
	}
	return p
}

// accepts reports whether a directory may be descended into.
func (fw *FileWatcher) accepts(dirPath string) bool {
	if dirPath == "" {
		return false
	}
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	return fw.exclude == nil || fw.exclude(dirPath)
}

// Start runs the watcher until ctx is cancelled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.wg.Add(3)
	go func() { defer fw.wg.Done(); fw.debouncer.start(ctx) }()
	go func() { defer fw.wg.Done(); fw.processEvents(ctx) }()
	go func() { defer fw.wg.Done(); fw.watchLoop(ctx) }()
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.mutex.Lock()
	if fw.debouncer.timer != nil {
		fw.debouncer.timer.Stop()
	}
	fw.debouncer.mutex.Unlock()

	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	pagePath, err := fw.canonical(event.Name)
	if err != nil {
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "failed to watch new directory", "path", pagePath)
			}
			fw.emitExisting(event.Name)
		}
		return
	}

	if !fw.passes(pagePath) {
		return
	}

	var eventType EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Op.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Op.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Op.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	changeEvent := ChangeEvent{
		Type:     eventType,
		Path:     pagePath,
		FullPath: event.Name,
	}
	if statErr == nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.Size = info.Size()
	}
	fw.debouncer.send(changeEvent)
}

// emitExisting reports files already present in a directory that appeared
// after Start; they may have been written before the directory was watched.
func (fw *FileWatcher) emitExisting(dir string) {
	_ = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		pagePath, cerr := fw.canonical(p)
		if cerr != nil || !fw.passes(pagePath) {
			return nil
		}
		fw.debouncer.send(ChangeEvent{
			Type:     EventTypeCreated,
			Path:     pagePath,
			FullPath: p,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		return nil
	})
}

func (fw *FileWatcher) passes(pagePath string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	if fw.exclude != nil && !fw.exclude(pagePath) {
		return false
	}
	for _, filter := range fw.filters {
		if !filter(pagePath) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Warn(ctx, err, "file watcher handler error", "events", len(events))
				}
			}
		}
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) send(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
		// full; a later event for the same path will still arrive
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// last event per path wins
	eventMap := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
	}

	d.pending = d.pending[:0]
}

// ExtensionFilter accepts paths with one of exts (case-insensitive).
func ExtensionFilter(exts ...string) FileFilter {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}
	return func(pagePath string) bool {
		return allowed[strings.ToLower(path.Ext(pagePath))]
	}
}

// ExcludeFilter rejects paths with any segment matching one of the
// base-name globs.
func ExcludeFilter(patterns ...string) FileFilter {
	return func(pagePath string) bool {
		for _, segment := range strings.Split(strings.TrimPrefix(pagePath, "/"), "/") {
			for _, pattern := range patterns {
				if ok, _ := path.Match(pattern, segment); ok {
					return false
				}
			}
		}
		return true
	}
}
