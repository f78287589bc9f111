// Package registry owns the mapping from canonical page path to PageEntry and
// the case-insensitive logical view name index.
//
// Entries are created once per canonical path and never removed; a source
// change only invalidates an entry back to the Unbuilt state. Both indexes
// are read-heavy and guarded by one reader-writer lock. Compilation state
// lives on the entries themselves behind per-entry locks, so no registry
// lock is ever held across a compile.
package registry

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/conneroisu/pageforge/internal/logging"
	"github.com/conneroisu/pageforge/internal/types"
)

// DefaultViewsDir is the reserved directory name that marks a page as a view.
const DefaultViewsDir = "views"

// EventType represents the type of registry event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeInvalidated
)

// String returns the string representation of the EventType
func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event represents a change in the registry
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// Registry manages all discovered pages
type Registry struct {
	entries  map[string]*PageEntry
	views    map[string]string
	viewsDir string
	mutex    sync.RWMutex
	watchers []chan Event
	logger   logging.Logger
}

// NewRegistry creates a registry whose view index covers pages below a
// directory named viewsDir. A nil logger discards output.
func NewRegistry(viewsDir string, logger logging.Logger) *Registry {
	if viewsDir == "" {
		viewsDir = DefaultViewsDir
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		entries:  make(map[string]*PageEntry),
		views:    make(map[string]string),
		viewsDir: viewsDir,
		watchers: make([]chan Event, 0),
		logger:   logger.WithComponent("registry"),
	}
}

// ViewsDir returns the reserved views directory name.
func (r *Registry) ViewsDir() string { return r.viewsDir }

// FoldName returns the case-insensitive index key for a logical view name.
func FoldName(name string) string {
	return cases.Fold().String(name)
}

// Register returns the entry for pagePath, creating it in the Unbuilt state
// when the path has not been seen before. Registering an existing path
// returns the same entry unchanged.
func (r *Registry) Register(pagePath string) *PageEntry {
	canonical := types.Canonical(pagePath)

	r.mutex.RLock()
	entry, exists := r.entries[canonical]
	r.mutex.RUnlock()
	if exists {
		return entry
	}

	r.mutex.Lock()
	if entry, exists = r.entries[canonical]; exists {
		r.mutex.Unlock()
		return entry
	}

	entry = newPageEntry(canonical, r.logicalNameFor(canonical))
	r.entries[canonical] = entry

	var replaced string
	if entry.logicalName != "" {
		key := FoldName(entry.logicalName)
		if previous, ok := r.views[key]; ok && previous != canonical {
			replaced = previous
		}
		r.views[key] = canonical
	}
	r.notify(Event{Type: EventTypeAdded, Path: canonical, Timestamp: time.Now()})
	r.mutex.Unlock()

	if replaced != "" {
		r.logger.Warn(context.Background(), nil, "logical view name collision, last registration wins",
			"name", entry.logicalName, "previous", replaced, "current", canonical)
	}
	return entry
}

// logicalNameFor returns the view name for pages below the views directory.
func (r *Registry) logicalNameFor(canonical string) string {
	dir, file := path.Split(canonical)
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if strings.EqualFold(segment, r.viewsDir) {
			return strings.TrimSuffix(file, path.Ext(file))
		}
	}
	return ""
}

// LookupByPath retrieves an entry by exact canonical path.
func (r *Registry) LookupByPath(pagePath string) (*PageEntry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entry, exists := r.entries[types.Canonical(pagePath)]
	return entry, exists
}

// LookupByLogicalName retrieves a view entry by case-insensitive name.
func (r *Registry) LookupByLogicalName(name string) (*PageEntry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.views[FoldName(name)]
	if !ok {
		return nil, false
	}
	entry, exists := r.entries[p]
	return entry, exists
}

// Contains reports whether pagePath is registered.
func (r *Registry) Contains(pagePath string) bool {
	_, ok := r.LookupByPath(pagePath)
	return ok
}

// LogicalPath returns the canonical path indexed under a view name.
func (r *Registry) LogicalPath(name string) (string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.views[FoldName(name)]
	return p, ok
}

// Invalidate resets entry to Unbuilt and drops its artifact or cached error.
// It reports whether the entry changed.
func (r *Registry) Invalidate(entry *PageEntry) bool {
	if entry == nil || !entry.invalidate() {
		return false
	}

	r.mutex.Lock()
	r.notify(Event{Type: EventTypeInvalidated, Path: entry.path, Timestamp: time.Now()})
	r.mutex.Unlock()
	return true
}

// Entries returns all entries ordered by path.
func (r *Registry) Entries() []*PageEntry {
	r.mutex.RLock()
	result := make([]*PageEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry)
	}
	r.mutex.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].path < result[j].path })
	return result
}

// Count returns the number of registered pages
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}

// notify must be called with the write lock held.
func (r *Registry) notify(event Event) {
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Watch returns a channel that receives registry events
func (r *Registry) Watch() <-chan Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *Registry) UnWatch(ch <-chan Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}
