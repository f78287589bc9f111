package registry

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/pageforge/internal/errors"
	"github.com/conneroisu/pageforge/internal/types"
)

// Status is the compilation state of a PageEntry.
type Status int32

const (
	StatusUnbuilt Status = iota
	StatusBuilding
	StatusValid
	StatusFailed
)

// String returns the string representation of the Status
func (s Status) String() string {
	switch s {
	case StatusUnbuilt:
		return "unbuilt"
	case StatusBuilding:
		return "building"
	case StatusValid:
		return "valid"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// snapshot is the immutable compile state of an entry. A new snapshot is
// stored for every transition so readers never see a half-built artifact.
type snapshot struct {
	status     Status
	artifact   types.Artifact
	err        error
	sourceHash string
	modelType  reflect.Type
	builtAt    time.Time
}

var unbuilt = &snapshot{status: StatusUnbuilt}

// BuildFunc compiles the page source and reports the hash of the source it
// compiled. It runs with the entry lock held.
type BuildFunc func() (artifact types.Artifact, sourceHash string, err error)

// PageEntry is the registry's unit of cached compilation state. Exactly one
// entry exists per canonical path.
type PageEntry struct {
	path        string
	logicalName string

	mu    sync.Mutex
	state atomic.Pointer[snapshot]

	attempts atomic.Int64
}

func newPageEntry(path, logicalName string) *PageEntry {
	e := &PageEntry{path: path, logicalName: logicalName}
	e.state.Store(unbuilt)
	return e
}

// Path returns the canonical registry key.
func (e *PageEntry) Path() string { return e.path }

// SourceRef returns the handle used to read the page source from the
// source provider.
func (e *PageEntry) SourceRef() string { return e.path }

// LogicalName returns the view name the entry is indexed under, or "" when
// the page lives outside the views namespace.
func (e *PageEntry) LogicalName() string { return e.logicalName }

// Status returns the current compilation state without locking.
func (e *PageEntry) Status() Status { return e.state.Load().status }

// Artifact returns the compiled artifact when the entry is valid.
func (e *PageEntry) Artifact() (types.Artifact, bool) {
	s := e.state.Load()
	return s.artifact, s.status == StatusValid
}

// LastError returns the cached compile error when the entry is failed.
func (e *PageEntry) LastError() error {
	s := e.state.Load()
	if s.status != StatusFailed {
		return nil
	}
	return s.err
}

// SourceHash returns the hash of the source behind the current terminal
// state, or "" when unbuilt.
func (e *PageEntry) SourceHash() string { return e.state.Load().sourceHash }

// ModelType returns the model type declared by the compiled artifact, if any.
func (e *PageEntry) ModelType() reflect.Type { return e.state.Load().modelType }

// BuiltAt returns when the current terminal state was reached.
func (e *PageEntry) BuiltAt() time.Time { return e.state.Load().builtAt }

// Attempts returns how many times the entry has entered the Building state.
func (e *PageEntry) Attempts() int64 { return e.attempts.Load() }

// Build moves the entry to a terminal state. If another caller already
// reached Valid or Failed while this one waited for the lock, the cached
// result is returned and compile is not called. compiled reports whether
// compile ran on this call.
func (e *PageEntry) Build(compile BuildFunc) (artifact types.Artifact, compiled bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s := e.state.Load(); s.status {
	case StatusValid:
		return s.artifact, false, nil
	case StatusFailed:
		return nil, false, s.err
	}

	e.state.Store(&snapshot{status: StatusBuilding})
	e.attempts.Add(1)

	var hash string
	artifact, hash, err = e.runCompile(compile)
	if err == nil && artifact == nil {
		err = errors.NewUnexpectedCompileError(e.path, fmt.Errorf("compiler returned no artifact"))
	}

	if err != nil {
		e.state.Store(&snapshot{
			status:     StatusFailed,
			err:        err,
			sourceHash: hash,
			builtAt:    time.Now(),
		})
		return nil, true, err
	}

	next := &snapshot{
		status:     StatusValid,
		artifact:   artifact,
		sourceHash: hash,
		builtAt:    time.Now(),
	}
	if mt, ok := artifact.(types.ModelTyper); ok {
		next.modelType = mt.ModelType()
	}
	e.state.Store(next)
	return artifact, true, nil
}

// runCompile converts a compiler panic into a cached failure so the entry
// can never stay in Building.
func (e *PageEntry) runCompile(compile BuildFunc) (artifact types.Artifact, hash string, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = errors.NewUnexpectedCompileError(e.path, fmt.Errorf("compiler panic: %v", r)).
				WithContext("panic", r)
		}
	}()
	return compile()
}

// invalidate resets the entry to Unbuilt under its lock. It waits for an
// in-flight build to finish first.
func (e *PageEntry) invalidate() bool {
	if e.state.Load().status == StatusUnbuilt {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Load().status == StatusUnbuilt {
		return false
	}
	e.state.Store(unbuilt)
	return true
}
