package errors

import (
	"sort"
	"sync"
	"time"
)

// PageFailure records a page that failed to compile or render.
type PageFailure struct {
	Page      string
	Err       error
	Timestamp time.Time
}

// ErrorCollector collects page failures from concurrent workers.
type ErrorCollector struct {
	failures []PageFailure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make([]PageFailure, 0),
	}
}

// Add records a failure for page. Nil errors are ignored.
func (ec *ErrorCollector) Add(page string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = append(ec.failures, PageFailure{Page: page, Err: err, Timestamp: time.Now()})
}

// Failures returns the recorded failures ordered by page path.
func (ec *ErrorCollector) Failures() []PageFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]PageFailure, len(ec.failures))
	copy(result, ec.failures)
	sort.Slice(result, func(i, j int) bool { return result[i].Page < result[j].Page })
	return result
}

// HasErrors reports whether anything was collected.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0
}

// Clear drops all collected failures.
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = ec.failures[:0]
}
